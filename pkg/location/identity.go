package location

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Identity is the stable reference to a user, independent of display name.
type Identity string

// String returns the identity as a plain string
func (i Identity) String() string {
	return string(i)
}

// UnmarshalJSON accepts both string and numeric identities. Numeric ids were
// written by earlier generations of the service and decode to their decimal
// string form.
func (i *Identity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*i = Identity(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identity must be a string or number: %w", err)
	}
	*i = Identity(n.String())
	return nil
}
