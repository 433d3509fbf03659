package participant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

type ParticipantStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *ParticipantStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestParticipantStoreSuite(t *testing.T) {
	suite.Run(t, new(ParticipantStoreSuite))
}

func (s *ParticipantStoreSuite) newParticipant(site id.SiteCode) *Participant {
	p, err := NewParticipant("", "", site, Demographics{
		EnrollmentDate: time.Now(),
		ConsentDate:    time.Now().AddDate(0, 0, -2),
		DateOfBirth:    time.Date(1975, 3, 2, 0, 0, 0, 0, time.UTC),
		Gender:         "M",
	}, time.Now())
	s.Require().NoError(err)
	return p
}

func (s *ParticipantStoreSuite) TestCreateAssignsIDAndLabel() {
	p1 := s.newParticipant("SITEA")
	s.Require().NoError(s.store.Create(s.ctx, p1))
	s.Equal(id.ParticipantID("PAT001"), p1.ID)
	s.Equal("SITEA001", p1.Label)

	p2 := s.newParticipant("SITEA")
	s.Require().NoError(s.store.Create(s.ctx, p2))
	s.Equal(id.ParticipantID("PAT002"), p2.ID)
	s.Equal("SITEA002", p2.Label)

	// A second site gets its own label sequence but shares the trial-wide id
	// sequence.
	p3 := s.newParticipant("SITEB")
	s.Require().NoError(s.store.Create(s.ctx, p3))
	s.Equal(id.ParticipantID("PAT003"), p3.ID)
	s.Equal("SITEB001", p3.Label)
}

func (s *ParticipantStoreSuite) TestFindByID() {
	p := s.newParticipant("SITEA")
	s.Require().NoError(s.store.Create(s.ctx, p))

	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Label, found.Label)

	_, err = s.store.FindByID(s.ctx, "PAT999")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ParticipantStoreSuite) TestListBySiteFilters() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("SITEA")))
	}
	s.Require().NoError(s.store.Create(s.ctx, s.newParticipant("SITEB")))

	siteA, err := s.store.ListBySite(s.ctx, "SITEA")
	s.Require().NoError(err)
	s.Len(siteA, 3)
	for _, p := range siteA {
		s.Equal(id.SiteCode("SITEA"), p.Site)
	}
}

func (s *ParticipantStoreSuite) TestExecuteValidateRejection() {
	p := s.newParticipant("SITEA")
	s.Require().NoError(s.store.Create(s.ctx, p))

	_, err := s.store.Execute(s.ctx, p.ID,
		func(rec *Participant) error { return rec.CanBreakCode() },
		func(rec *Participant) { rec.ApplyCodeBreak(time.Now(), time.Now()) },
	)
	s.Require().Error(err)

	// The rejected mutation must not have leaked into the store.
	found, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusEnrolled, found.Status)
}

func (s *ParticipantStoreSuite) TestExecuteSerializesTransitions() {
	p := s.newParticipant("SITEA")
	s.Require().NoError(s.store.Create(s.ctx, p))

	// Two concurrent randomizations: exactly one must win; the loser observes
	// the winner's state and fails validation.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.store.Execute(s.ctx, p.ID,
				func(rec *Participant) error { return rec.CanRandomize() },
				func(rec *Participant) { rec.ApplyRandomization("BYL001", time.Now()) },
			)
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
		}
	}
	s.Equal(1, failures)

	final, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(StatusRandomized, final.Status)
	s.Equal(2, final.Version)
}
