// Package common keeps small types shared by configuration, conversion
// engines and command line glue.
package common

import (
	"fmt"
	"strings"
)

// Strategy specifies how an e-book is laid out into paginated output.
type Strategy int

const (
	StrategyAuto Strategy = iota
	StrategySingle
	StrategySplit
)

var strategyNames = []string{"auto", "single", "split"}

// StrategyNames returns list of possible string values of Strategy.
func StrategyNames() []string {
	names := make([]string, len(strategyNames))
	copy(names, strategyNames)
	return names
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// IsValid checks that value is one of the known strategies.
func (s Strategy) IsValid() bool {
	return s >= 0 && int(s) < len(strategyNames)
}

// ParseStrategy attempts to convert a string to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Strategy(i), nil
		}
	}
	return StrategyAuto, fmt.Errorf("%s is not a valid Strategy, try [%s]", name, strings.Join(strategyNames, ", "))
}

// MarshalText implements the text marshaller method.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements the text unmarshaller method.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
