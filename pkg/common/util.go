package common

import (
	"encoding/json"
	"fmt"
)

// Marshal renders data as compact JSON for inclusion in a diagnostic
// message. If data doesn't marshal cleanly (e.g. it holds a func
// value, as a permission type callback's zero value might), it falls
// back to a %+v rendering rather than failing the caller.
func Marshal(data interface{}) string {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf("%+v", data)
	}
	return string(b)
}
