package outreach

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spigell/recruiter-outreach/internal/ledger"
)

func countOutcome(t *testing.T, data []byte, outcome ledger.Outcome) int {
	t.Helper()
	n := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var e ledger.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("decoding ledger line %q: %v", scanner.Text(), err)
		}
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}
