//go:build integration

package participant_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"trialgate/internal/participant"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *participant.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = participant.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "participants"))
	s.Require().NoError(s.postgres.ResetSequences(ctx, "participants_seq"))
}

func (s *PostgresStoreSuite) newEnrolled(site id.SiteCode) *participant.Participant {
	now := time.Now()
	p, err := participant.NewParticipant("", "", site, participant.Demographics{
		EnrollmentDate: now,
		ConsentDate:    now.Add(-24 * time.Hour),
		DateOfBirth:    time.Date(1980, 5, 12, 0, 0, 0, 0, time.UTC),
		Gender:         "female",
	}, now)
	s.Require().NoError(err)
	return p
}

func (s *PostgresStoreSuite) TestCreateAssignsSequentialIDs() {
	ctx := context.Background()

	first := s.newEnrolled("SITEA")
	s.Require().NoError(s.store.Create(ctx, first))
	s.Equal(id.ParticipantID("PAT001"), first.ID)
	s.Equal("SITEA001", first.Label)

	second := s.newEnrolled("SITEB")
	s.Require().NoError(s.store.Create(ctx, second))
	s.Equal(id.ParticipantID("PAT002"), second.ID)
	// The label sequence is per site; the id sequence is trial-wide.
	s.Equal("SITEB001", second.Label)
}

func (s *PostgresStoreSuite) TestConcurrentEnrollmentsGetDistinctLabels() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	ids := make([]id.ParticipantID, goroutines)
	labels := make([]string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := s.newEnrolled("SITEA")
			if err := s.store.Create(ctx, p); err == nil {
				ids[i] = p.ID
				labels[i] = p.Label
			}
		}(i)
	}
	wg.Wait()

	seenIDs := make(map[id.ParticipantID]bool, goroutines)
	seenLabels := make(map[string]bool, goroutines)
	for i := 0; i < goroutines; i++ {
		s.Require().NotEmpty(ids[i], "enrollment %d failed", i)
		s.False(seenIDs[ids[i]], "duplicate id %s", ids[i])
		s.False(seenLabels[labels[i]], "duplicate label %s", labels[i])
		seenIDs[ids[i]] = true
		seenLabels[labels[i]] = true
	}
}

func (s *PostgresStoreSuite) TestExecuteRejectionWritesNothing() {
	ctx := context.Background()
	p := s.newEnrolled("SITEA")
	s.Require().NoError(s.store.Create(ctx, p))

	_, err := s.store.Execute(ctx, p.ID,
		func(rec *participant.Participant) error {
			return dErrors.New(dErrors.CodeInvalidState, "rejected")
		},
		func(rec *participant.Participant) { rec.ApplyRandomization("BYL001", time.Now()) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(participant.StatusEnrolled, found.Status)
	s.Empty(found.PackID)
	s.Equal(1, found.Version)
}

func (s *PostgresStoreSuite) TestConcurrentRandomizeExactlyOneWinner() {
	ctx := context.Background()
	p := s.newEnrolled("SITEA")
	s.Require().NoError(s.store.Create(ctx, p))

	const goroutines = 10
	var wg sync.WaitGroup
	var wins atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pack := id.PackID(fmt.Sprintf("BYL9%02d", i+1))
			_, err := s.store.Execute(ctx, p.ID,
				func(rec *participant.Participant) error { return rec.CanRandomize() },
				func(rec *participant.Participant) { rec.ApplyRandomization(pack, time.Now()) },
			)
			if err == nil {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one randomization should succeed")

	found, err := s.store.FindByID(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(participant.StatusRandomized, found.Status)
	s.NotEmpty(found.PackID)
	s.Equal(2, found.Version)
}

func (s *PostgresStoreSuite) TestFindUnknownIsNotFound() {
	_, err := s.store.FindByID(context.Background(), "PAT999")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Execute(context.Background(), "PAT999",
		func(*participant.Participant) error { return nil },
		func(*participant.Participant) {},
	)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListBySite() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Create(ctx, s.newEnrolled("SITEA")))
	}
	s.Require().NoError(s.store.Create(ctx, s.newEnrolled("SITEB")))

	listed, err := s.store.ListBySite(ctx, "SITEA")
	s.Require().NoError(err)
	s.Len(listed, 3)
	for _, rec := range listed {
		s.Equal(id.SiteCode("SITEA"), rec.Site)
	}
}
