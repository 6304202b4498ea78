package bus

import (
	"strings"

	"github.com/shawwn/disruption/errs"
	"github.com/shawwn/disruption/ring"
)

func validateAddress(address string) error {
	return validateName(address, ring.MaxAddressLength)
}

func validateUsername(username string) error {
	return validateName(username, ring.MaxUsernameLength)
}

func validateName(name string, max int) error {
	if len(name) < 1 || len(name) > max {
		return errs.New(errs.KindInvalidName, "validate", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errs.New(errs.KindInvalidName, "validate", name)
	}
	return nil
}
