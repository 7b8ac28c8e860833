package filtering

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/recruiter-outreach/internal/linkedin"
	"github.com/spigell/recruiter-outreach/internal/settings"
)

func testSettings() settings.Settings {
	return settings.Settings{
		Location:    "São Paulo",
		Companies:   []string{"Google"},
		SearchTerms: []string{"tech recruiter"},
	}
}

func TestChainCheck(t *testing.T) {
	cl := mustClassifier(t)
	chain, err := NewChain(nil, Default(cl, testSettings(), contactedSet{"/in/old": true}, "")...)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	cases := []struct {
		cand     linkedin.Candidate
		wantKeep bool
		wantStep string
	}{
		{linkedin.Candidate{Headline: "Tech Recruiter at Google", Location: "São Paulo, Brasil", ProfileRef: "/in/ana"}, true, ""},
		{linkedin.Candidate{Headline: "Senior Developer at Amazon", Location: "São Paulo", ProfileRef: "/in/dev"}, false, RoleName},
		{linkedin.Candidate{Headline: "Talent Acquisition Specialist at Microsoft", Location: "São Paulo", ProfileRef: "/in/ta"}, false, CompanyName},
		{linkedin.Candidate{Headline: "Tech Recruiter at Google", Location: "São Paulo", ProfileRef: "/in/old"}, false, ContactHistoryName},
	}

	for _, tc := range cases {
		verdict, err := chain.Check(context.Background(), &tc.cand)
		if err != nil {
			t.Fatalf("Check(%s): %v", tc.cand.ProfileRef, err)
		}
		if verdict.Keep != tc.wantKeep || verdict.Step != tc.wantStep {
			t.Errorf("Check(%s) = %+v, want keep=%v step=%q", tc.cand.ProfileRef, verdict, tc.wantKeep, tc.wantStep)
		}
	}

	steps := chain.Steps()
	if len(steps) != 6 {
		t.Fatalf("expected 6 steps, got %d", len(steps))
	}
	if steps[0].Name != RoleName || steps[0].Checked != 4 || steps[0].Dropped != 1 {
		t.Fatalf("unexpected role stats: %+v", steps[0])
	}
	if steps[1].Name != CompanyName || steps[1].Checked != 3 || steps[1].Dropped != 1 {
		t.Fatalf("unexpected company stats: %+v", steps[1])
	}
}

func TestChainSkipsDisabledSteps(t *testing.T) {
	cl := mustClassifier(t)
	steps := Default(cl, testSettings(), nil, "")
	DisableByName(steps, ContactHistoryName, "no ledger")
	DisableByName(steps, CompanyName, "any employer")

	chain, err := NewChain(nil, steps...)
	if err != nil {
		t.Fatalf("disabled contact history must not be validated: %v", err)
	}

	verdict, err := chain.Check(context.Background(), &linkedin.Candidate{
		Headline: "Talent Acquisition Specialist at Microsoft",
		Location: "São Paulo",
	})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.Keep {
		t.Fatalf("expected candidate to pass, dropped by %q", verdict.Step)
	}

	for _, st := range Describe(steps) {
		if st.Name == CompanyName && (st.Enabled || st.Reason != "any employer") {
			t.Fatalf("unexpected company status: %+v", st)
		}
	}
}

func TestNewChainRequiresHistory(t *testing.T) {
	if _, err := NewChain(nil, NewContactHistory(nil)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestExcludeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	excluded := &linkedin.ExcludedProfiles{Items: []*linkedin.ExcludedProfile{
		{Profile: "https://www.linkedin.com/in/Blocked/", Name: "Blocked"},
	}}
	if err := excluded.ToFile(path); err != nil {
		t.Fatalf("ToFile: %v", err)
	}

	f := NewExcludeFile(path)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	keep, err := f.Keep(context.Background(), &linkedin.Candidate{ProfileRef: "https://www.linkedin.com/in/blocked?trk=x"})
	if err != nil || keep {
		t.Fatalf("expected excluded profile to be dropped, keep=%v err=%v", keep, err)
	}
	keep, _ = f.Keep(context.Background(), &linkedin.Candidate{ProfileRef: "https://www.linkedin.com/in/other"})
	if !keep {
		t.Fatal("expected other profile to pass")
	}
}

func TestExcludeFileBroken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := NewExcludeFile(path).Validate(); err == nil {
		t.Fatal("expected error for malformed exclude file")
	}
}

func TestChainReportLogsSteps(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	chain, err := NewChain(zap.New(core), NewAlreadyConnected())
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	_, _ = chain.Check(context.Background(), &linkedin.Candidate{AlreadyConnected: true})

	chain.Report()

	entries := logs.FilterMessage("filter step").All()
	if len(entries) != 1 {
		t.Fatalf("expected one report entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["name"] != AlreadyConnectedName || fields["dropped"] != int64(1) {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
