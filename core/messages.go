package core

import (
	"fmt"
	"strings"
)

func formatPrice(cents int) string {
	if cents <= 0 {
		return "$0"
	}
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func teaserMessage(lead Lead, priceCents int, acceptURL string) string {
	var b strings.Builder
	b.WriteString("New lead in ")
	b.WriteString(firstNonEmpty(lead.City, "your area"))
	if service := strings.TrimSpace(lead.ServiceType); service != "" {
		b.WriteString(": " + service)
	}
	b.WriteString(".")
	if window := strings.TrimSpace(lead.PreferredTimeWindow); window != "" {
		b.WriteString(" Preferred time: " + window + ".")
	}
	if budget := strings.TrimSpace(lead.BudgetRange); budget != "" {
		b.WriteString(" Budget: " + budget + ".")
	}
	if notes := strings.TrimSpace(lead.NotesSnippet); notes != "" {
		b.WriteString(" \"" + notes + "\"")
	}
	b.WriteString(fmt.Sprintf(" Unlock full contact for %s.", formatPrice(priceCents)))
	if acceptURL != "" {
		b.WriteString(" Tap to accept: " + acceptURL)
	}
	b.WriteString(" Or reply Y to get a payment link.")
	return b.String()
}

func nudgeMessage(lead Lead) string {
	area := firstNonEmpty(lead.City, "your area")
	service := firstNonEmpty(lead.ServiceType, "a service request")
	return fmt.Sprintf("Still interested? The %s lead in %s is waiting. Reply Y to unlock the client's contact info.", service, area)
}

func paymentLinkMessage(priceCents int, url string) string {
	return fmt.Sprintf("Great! Complete your %s unlock here: %s. The client's full contact details arrive the moment payment clears.", formatPrice(priceCents), url)
}

func revealSMS(lead Lead) string {
	var b strings.Builder
	b.WriteString("You're unlocked! Client: ")
	b.WriteString(firstNonEmpty(lead.ClientName, "the client"))
	if phone := strings.TrimSpace(lead.ClientPhone); phone != "" {
		b.WriteString(", " + phone)
	}
	if email := strings.TrimSpace(lead.ClientEmail); email != "" {
		b.WriteString(", " + email)
	}
	if address := strings.TrimSpace(lead.ExactAddress); address != "" {
		b.WriteString(". Address: " + address)
		if zip := strings.TrimSpace(lead.ZipCode); zip != "" {
			b.WriteString(" " + zip)
		}
	}
	if pref := strings.TrimSpace(lead.ContactPref); pref != "" {
		b.WriteString(". Prefers contact via " + pref)
	}
	b.WriteString(". Reach out soon, leads go cold fast.")
	return b.String()
}

func revealEmailSubject(lead Lead) string {
	return fmt.Sprintf("Lead unlocked: %s in %s", firstNonEmpty(lead.ServiceType, "service request"), firstNonEmpty(lead.City, "your area"))
}

func revealEmailHTML(lead Lead) string {
	var b strings.Builder
	b.WriteString("<h2>Your lead is unlocked</h2>")
	b.WriteString("<p><strong>Client:</strong> " + firstNonEmpty(lead.ClientName, "the client") + "</p>")
	if phone := strings.TrimSpace(lead.ClientPhone); phone != "" {
		b.WriteString("<p><strong>Phone:</strong> " + phone + "</p>")
	}
	if email := strings.TrimSpace(lead.ClientEmail); email != "" {
		b.WriteString("<p><strong>Email:</strong> " + email + "</p>")
	}
	if address := strings.TrimSpace(lead.ExactAddress); address != "" {
		b.WriteString("<p><strong>Address:</strong> " + address + " " + strings.TrimSpace(lead.ZipCode) + "</p>")
	}
	if window := strings.TrimSpace(lead.PreferredTimeWindow); window != "" {
		b.WriteString("<p><strong>Preferred time:</strong> " + window + "</p>")
	}
	if notes := strings.TrimSpace(lead.NotesSnippet); notes != "" {
		b.WriteString("<p><strong>Notes:</strong> " + notes + "</p>")
	}
	return b.String()
}

func revealEmailText(lead Lead) string {
	var b strings.Builder
	b.WriteString("Your lead is unlocked.\n")
	b.WriteString("Client: " + firstNonEmpty(lead.ClientName, "the client") + "\n")
	if phone := strings.TrimSpace(lead.ClientPhone); phone != "" {
		b.WriteString("Phone: " + phone + "\n")
	}
	if email := strings.TrimSpace(lead.ClientEmail); email != "" {
		b.WriteString("Email: " + email + "\n")
	}
	if address := strings.TrimSpace(lead.ExactAddress); address != "" {
		b.WriteString("Address: " + address + " " + strings.TrimSpace(lead.ZipCode) + "\n")
	}
	return b.String()
}

func clientCheckinMessage(followUp ClientFollowUp) string {
	name := firstNonEmpty(followUp.ClientName, "there")
	provider := firstNonEmpty(followUp.ProviderName, "your provider")
	return fmt.Sprintf("Hi %s! Did %s reach out and get you booked? Reply YES if you're all set, NO if you still need help.", name, provider)
}

func clientThanksMessage() string {
	return "Wonderful, enjoy your appointment! Text us any time you need another booking."
}

func recoveryOfferMessage() string {
	return "Sorry to hear that. Want us to find you another provider? Reply YES and we'll get right on it, or NO if you're all set."
}

func recoveryRequeueMessage() string {
	return "On it! We're reaching out to other providers now and you'll hear from us shortly."
}

func recoveryWaitMessage() string {
	return "We're on it. We'll line up another provider and text you as soon as one confirms."
}

func closingMessage() string {
	return "No problem, we'll close this one out. Text us whenever you need a booking."
}

func contactCheckinPrompt(lead Lead) string {
	name := firstNonEmpty(lead.ClientName, "your new lead")
	return fmt.Sprintf("Quick check-in: have you contacted %s yet? Reply 1 if you've reached out, 2 if not yet.", name)
}

func contactConfirmedMessage() string {
	return "Great, thanks for confirming! Good luck with the booking."
}

func contactNotYetMessage() string {
	return "No rush, but leads convert best within the first hour. Reply 1 once you've reached out."
}
