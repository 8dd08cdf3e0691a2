package models

import (
	"fmt"
	"strings"
)

// Provider selects which upstream adapter serves a generation request
type Provider string

const (
	ProviderVision    Provider = "vision"
	ProviderTextToURL Provider = "text-to-url"
)

// providerAliases accepts the vendor names older clients send
var providerAliases = map[string]Provider{
	"vision":      ProviderVision,
	"openai":      ProviderVision,
	"text-to-url": ProviderTextToURL,
	"gemini":      ProviderTextToURL,
}

// ParseProvider resolves a wire value to a Provider; empty input yields def
func ParseProvider(s string, def Provider) (Provider, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	if p, ok := providerAliases[s]; ok {
		return p, nil
	}
	return "", &ValidationError{Message: fmt.Sprintf("Unknown provider %q", s)}
}

func (p Provider) String() string {
	return string(p)
}
