package audit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	identities []string
	listErr    error
	keys       map[string][]KeyRecord
	keyErrs    map[string]error
	calls      atomic.Int64
}

func (f *fakeSource) ListIdentities(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.identities, nil
}

func (f *fakeSource) ListKeys(ctx context.Context, identity string) ([]KeyRecord, error) {
	f.calls.Add(1)
	if err := f.keyErrs[identity]; err != nil {
		return nil, err
	}
	return f.keys[identity], nil
}

func TestRunAuditMergesPerIdentityResults(t *testing.T) {
	th := defaultThresholds()
	source := &fakeSource{
		identities: []string{"alice", "bob", "carol", "dave"},
		keys: map[string][]KeyRecord{
			"alice": {keyAged("alice", "AKIAALICE", StatusActive, 38)},
			"bob":   {keyAged("bob", "AKIABOB", StatusInactive, 400)},
			"carol": {
				keyAged("carol", "AKIACAROL1", StatusActive, 20),
				keyAged("carol", "AKIACAROL2", StatusActive, 35),
			},
			"dave": {keyAged("dave", "AKIADAVE", StatusActive, 2)},
		},
	}

	report := RunAudit(context.Background(), source, source.identities, testNow, th)

	assert.Equal(t, []Entry{{Identity: "bob", KeyID: "AKIABOB", AgeDays: 400}}, report.Inactive)
	assert.Equal(t, []Entry{{Identity: "carol", KeyID: "AKIACAROL1", AgeDays: 20}}, report.ExpiringSoon)
	assert.Equal(t, []Entry{
		{Identity: "alice", KeyID: "AKIAALICE", AgeDays: 38},
		{Identity: "carol", KeyID: "AKIACAROL2", AgeDays: 35},
	}, report.Expired)
	assert.Equal(t, []string{"alice"}, report.Reminders)
	assert.Equal(t, 4, report.Identities)
	assert.Equal(t, 5, report.Keys)
	assert.Equal(t, 1, report.Healthy)
	assert.Empty(t, report.FetchErrors)
	assert.Empty(t, report.ValidationErrors)
}

func TestRunAuditBucketSizesMatchPerIdentitySums(t *testing.T) {
	th := defaultThresholds()
	source := &fakeSource{keys: map[string][]KeyRecord{}}
	for i := 0; i < 50; i++ {
		identity := fmt.Sprintf("user-%02d", i)
		source.identities = append(source.identities, identity)
		source.keys[identity] = []KeyRecord{
			keyAged(identity, identity+"-a", StatusActive, i),
			keyAged(identity, identity+"-b", StatusInactive, i*3),
		}
	}

	var want Result
	wantReminders := 0
	for _, identity := range source.identities {
		part := ClassifyIdentity(context.Background(), identity, source.keys[identity], testNow, th)
		want.merge(part.Result)
		if part.ReminderDue {
			wantReminders++
		}
	}

	report := RunAudit(context.Background(), source, source.identities, testNow, th, WithConcurrency(4))

	assert.Equal(t, want, report.Result)
	assert.Len(t, report.Reminders, wantReminders)
	assert.Equal(t, int64(50), source.calls.Load())
	assert.Equal(t, 100, report.Keys)
}

func TestRunAuditRecordsFetchErrors(t *testing.T) {
	th := defaultThresholds()
	boom := errors.New("throttled")
	source := &fakeSource{
		identities: []string{"alice", "mallory", "bob"},
		keys: map[string][]KeyRecord{
			"alice": {keyAged("alice", "AKIAALICE", StatusActive, 30)},
			"bob":   {keyAged("bob", "AKIABOB", StatusInactive, 1)},
		},
		keyErrs: map[string]error{"mallory": boom},
	}

	report := RunAudit(context.Background(), source, source.identities, testNow, th)

	require.Len(t, report.FetchErrors, 1)
	fetchErr := report.FetchErrors[0]
	assert.Equal(t, "mallory", fetchErr.Identity)
	assert.True(t, errors.Is(fetchErr, ErrFetch))
	assert.True(t, errors.Is(fetchErr, boom))

	assert.Len(t, report.Expired, 1)
	assert.Len(t, report.Inactive, 1)
	assert.Equal(t, []string{"alice"}, report.Reminders)
}

func TestRunAuditInactiveNeverReminded(t *testing.T) {
	th := defaultThresholds()
	source := &fakeSource{
		identities: []string{"bob"},
		keys: map[string][]KeyRecord{
			"bob": {keyAged("bob", "AKIABOB", StatusInactive, 30)},
		},
	}

	report := RunAudit(context.Background(), source, source.identities, testNow, th)

	assert.Len(t, report.Inactive, 1)
	assert.Empty(t, report.ExpiringSoon)
	assert.Empty(t, report.Expired)
	assert.Empty(t, report.Reminders)
}

func TestRunAuditOneReminderPerIdentity(t *testing.T) {
	th := defaultThresholds()
	source := &fakeSource{
		identities: []string{"alice"},
		keys: map[string][]KeyRecord{
			"alice": {
				keyAged("alice", "AKIA1", StatusActive, 30),
				keyAged("alice", "AKIA2", StatusActive, 38),
			},
		},
	}

	report := RunAudit(context.Background(), source, source.identities, testNow, th)

	assert.Len(t, report.Expired, 2)
	assert.Equal(t, []string{"alice"}, report.Reminders)
}

func TestAuditorRun(t *testing.T) {
	th := defaultThresholds()

	t.Run("directory failure is fatal", func(t *testing.T) {
		source := &fakeSource{listErr: errors.New("access denied")}
		auditor, err := NewAuditor(source, th)
		require.NoError(t, err)

		report, err := auditor.Run(context.Background(), testNow)

		assert.Nil(t, report)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDirectory))
		assert.Equal(t, int64(0), source.calls.Load(), "no identity task may start")
	})

	t.Run("audits enumerated identities", func(t *testing.T) {
		source := &fakeSource{
			identities: []string{"alice"},
			keys: map[string][]KeyRecord{
				"alice": {keyAged("alice", "AKIA1", StatusActive, 46)},
			},
		}
		auditor, err := NewAuditor(source, th, WithConcurrency(2))
		require.NoError(t, err)

		report, err := auditor.Run(context.Background(), testNow)

		require.NoError(t, err)
		assert.Equal(t, []string{"alice"}, report.Reminders)
	})

	t.Run("rejects invalid thresholds", func(t *testing.T) {
		_, err := NewAuditor(&fakeSource{}, Thresholds{WarnDays: 40, ErrorDays: 30, ReminderPeriodDays: 8})
		assert.Error(t, err)
	})

	t.Run("requires a source", func(t *testing.T) {
		_, err := NewAuditor(nil, th)
		assert.Error(t, err)
	})
}

func TestBuildOptions(t *testing.T) {
	assert.Equal(t, DefaultConcurrency, buildOptions(nil).concurrency)
	assert.Equal(t, DefaultConcurrency, buildOptions([]Option{WithConcurrency(0)}).concurrency)
	assert.Equal(t, 3, buildOptions([]Option{WithConcurrency(3)}).concurrency)
}
