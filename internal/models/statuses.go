package models

// Live event statuses.
const (
	EventPlanejada = "planejada"
	EventAoVivo    = "ao_vivo"
	EventEncerrada = "encerrada"
	EventArquivada = "arquivada"
)

// Cart statuses.
const (
	CartAberto              = "aberto"
	CartEmConfirmacao       = "em_confirmacao"
	CartAguardandoPagamento = "aguardando_pagamento"
	CartPago                = "pago"
	CartCancelado           = "cancelado"
	CartExpirado            = "expirado"
)

// Cart item (reservation) statuses.
const (
	ItemReservado  = "reservado"
	ItemConfirmado = "confirmado"
	ItemRemovido   = "removido"
	ItemCancelado  = "cancelado"
	ItemExpirado   = "expirado"
)

// Waitlist entry statuses.
const (
	WaitlistAtiva     = "ativa"
	WaitlistChamada   = "chamada"
	WaitlistAtendida  = "atendida"
	WaitlistCancelada = "cancelada"
)

// Raffle record statuses.
const (
	RafflePending   = "pending"
	RaffleApplied   = "applied"
	RaffleCancelled = "cancelled"
)

// Live discount types.
const (
	DiscountNone       = "none"
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// LedgerActiveItemStatuses are the item statuses that consume stock.
// Expired reservations keep consuming stock until an operator cancels the
// cart, so a late payment can still be honored without double-selling.
var LedgerActiveItemStatuses = []string{ItemReservado, ItemConfirmado, ItemExpirado}

// CountedItemStatuses are the item statuses that count toward KPIs.
var CountedItemStatuses = []string{ItemReservado, ItemConfirmado}

// ExpirableCartStatuses are the cart statuses the expiry sweep may close.
var ExpirableCartStatuses = []string{CartAberto, CartEmConfirmacao, CartAguardandoPagamento}

// cartTransitions is the single authoritative definition of legal cart
// status changes. pago and cancelado are terminal.
var cartTransitions = map[string][]string{
	CartAberto:              {CartEmConfirmacao, CartAguardandoPagamento, CartExpirado, CartCancelado},
	CartEmConfirmacao:       {CartAguardandoPagamento, CartExpirado, CartCancelado},
	CartAguardandoPagamento: {CartPago, CartExpirado, CartCancelado},
	CartExpirado:            {CartCancelado},
	CartPago:                {},
	CartCancelado:           {},
}

// CanTransitionCart reports whether a cart may move from one status to another.
func CanTransitionCart(from, to string) bool {
	for _, allowed := range cartTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
