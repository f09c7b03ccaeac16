package intent

// DefaultKeywords returns the built-in keyword table for the standard
// Fooodis intents, in English and Swedish. Callers may copy and extend it
// per tenant.
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"menu-help": {
			"menu", "food", "dish", "eat", "order", "what can i get",
			"meny", "mat", "rätt", "beställa",
		},
		"opening-hours": {
			"open", "close", "hours", "when", "öppet", "stänger", "öppettider",
		},
		"booking": {
			"book", "reserve", "reservation", "table", "boka", "bord",
		},
		"billing-question": {
			"billing", "invoice", "payment", "charge", "refund",
			"faktura", "betalning", "återbetalning",
		},
		"technical-support": {
			"not working", "broken", "error", "bug", "problem", "help",
			"fungerar inte", "trasig", "fel",
		},
		"pricing": {
			"price", "cost", "how much", "plan", "subscription",
			"pris", "kostar", "abonnemang",
		},
		"demo-request": {
			"demo", "trial", "try", "test", "prova",
		},
		"human-handoff": {
			"human", "agent", "person", "talk to someone", "speak to",
			"människa", "prata med",
		},
	}
}
