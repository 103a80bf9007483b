package compose

import (
	"regexp"
	"strings"
)

// addressPattern is the basic local@domain.tld shape: no embedded
// whitespace, exactly one @, a dot somewhere after it.
var addressPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var bulkSeparators = regexp.MustCompile(`[\n,;]`)

// ValidateAddress checks one address against the basic email shape.
func ValidateAddress(addr string) bool {
	return addressPattern.MatchString(addr)
}

// ResolveRecipients normalizes the recipient input into an ordered address
// list. With bulk mode off the single field is used; with it on the bulk
// field is split on newlines, commas, and semicolons. Empty tokens are
// dropped before validation, and every invalid survivor is reported.
func ResolveRecipients(single, bulk string, bulkMode bool) ([]string, error) {
	var recipients []string
	if bulkMode {
		for _, token := range bulkSeparators.Split(bulk, -1) {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			recipients = append(recipients, token)
		}
	} else {
		if trimmed := strings.TrimSpace(single); trimmed != "" {
			recipients = []string{trimmed}
		}
	}

	if len(recipients) == 0 {
		return nil, ErrEmptyRecipient
	}

	var invalid []string
	for _, addr := range recipients {
		if !ValidateAddress(addr) {
			invalid = append(invalid, addr)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidRecipientsError{Addresses: invalid}
	}

	return recipients, nil
}
