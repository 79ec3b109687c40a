package pass

import (
	"fmt"
	"strings"

	commonerrors "walletpass/internal/common/errors"
)

const maxSerialLength = 64

// ValidateRequest checks mandatory display fields and the serial's fitness
// as a filesystem path component. It runs before any disk side effect, so a
// rejected request leaves nothing behind.
func ValidateRequest(r *Request) error {
	var missing []string
	for _, field := range []struct {
		name  string
		value string
	}{
		{"serialNumber", r.SerialNumber},
		{"amount", r.Amount},
		{"category", r.Category},
		{"withdrawalRate", r.WithdrawalRate},
		{"successProbability", r.SuccessProbability},
		{"explanation", r.Explanation},
		{"barcodeMessage", r.BarcodeMessage},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return commonerrors.NewRequestInvalidError(
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	}

	if err := validateSerial(r.SerialNumber); err != nil {
		return commonerrors.NewRequestInvalidError(err.Error())
	}
	return nil
}

// validateSerial rejects serials that could escape the staging root or break
// the archive filename.
func validateSerial(serial string) error {
	if len(serial) > maxSerialLength {
		return fmt.Errorf("serialNumber exceeds %d characters", maxSerialLength)
	}
	if strings.ContainsAny(serial, "/\\\x00") {
		return fmt.Errorf("serialNumber contains path separators or NUL")
	}
	if serial == "." || serial == ".." || strings.Contains(serial, "..") {
		return fmt.Errorf("serialNumber contains path traversal sequence")
	}
	return nil
}
