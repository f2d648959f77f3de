package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DFE-Digital/teaching-record-system-sub012/internal/export/encode"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/export/watermark"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger"
	ledgermem "github.com/DFE-Digital/teaching-record-system-sub012/internal/ledger/memory"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/person/models"
	personmem "github.com/DFE-Digital/teaching-record-system-sub012/internal/person/store/memory"
	"github.com/DFE-Digital/teaching-record-system-sub012/internal/platform/blob"
	id "github.com/DFE-Digital/teaching-record-system-sub012/pkg/domain"
)

var runStart = time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

var clock = func() time.Time { return runStart }

type ExporterSuite struct {
	suite.Suite
	persons    *personmem.InMemory
	blobs      *blob.InMemory
	ledger     *ledgermem.InMemory
	watermarks *watermark.InMemory
	exporter   *Exporter
}

func TestExporterSuite(t *testing.T) {
	suite.Run(t, new(ExporterSuite))
}

func (s *ExporterSuite) SetupTest() {
	s.persons = personmem.New()
	s.blobs = blob.NewInMemory()
	s.ledger = ledgermem.New()
	s.watermarks = watermark.NewInMemory()

	var err error
	s.exporter, err = New(s.persons, s.blobs, s.ledger, s.watermarks, WithClock(clock))
	s.Require().NoError(err)
}

func (s *ExporterSuite) seed(trn id.TRN, surname string, createdAt time.Time) *models.Person {
	dob := time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC)
	p := &models.Person{
		ID:          id.NewPersonID(),
		TRN:         trn,
		Gender:      id.GenderFemale,
		FirstName:   "Rosa",
		LastName:    surname,
		DateOfBirth: &dob,
		Status:      models.StatusActive,
		CreatedAt:   createdAt,
	}
	s.Require().NoError(s.persons.Create(context.Background(), p))
	return p
}

func (s *ExporterSuite) update(p *models.Person, at time.Time, mutate func(*models.Person)) *models.Person {
	cp, err := s.persons.GetByID(context.Background(), p.ID)
	s.Require().NoError(err)
	mutate(cp)
	cp.UpdatedAt = at
	s.Require().NoError(s.persons.Update(context.Background(), cp, cp.Version))
	return cp
}

func (s *ExporterSuite) fileLines(name string) []string {
	data, ok := s.blobs.Get(name)
	s.Require().True(ok, "export file %s written", name)
	content := strings.TrimSuffix(string(data), "\n")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func (s *ExporterSuite) TestExecuteNew() {
	ctx := context.Background()
	s.seed("1000001", "Kovacs", runStart.Add(-time.Hour))
	s.seed("1000002", "Okafor", runStart.Add(-time.Minute))

	txn, err := s.exporter.ExecuteNew(ctx)
	s.Require().NoError(err)
	s.Equal(ledger.StatusSuccess, txn.Status)
	s.Equal(2, txn.Total)
	s.Equal("Reg01_DTR_20240601_153000_New.txt", txn.FileName)

	lines := s.fileLines(txn.FileName)
	s.Require().Len(lines, 2)
	for _, line := range lines {
		s.Len(line, encode.RowWidth)
		s.Equal(encode.CodeNewRecord, line[78:86])
	}
	s.Equal("1000001", lines[0][0:7], "oldest created first")
	s.Equal("1000002", lines[1][0:7])

	at, ok, err := s.watermarks.LastRun(ctx, watermark.JobNewExport)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(runStart, at)
}

func (s *ExporterSuite) TestExecuteNewHonorsWatermark() {
	ctx := context.Background()
	s.seed("1000001", "Old", runStart.Add(-2*time.Hour))
	s.seed("1000002", "Fresh", runStart.Add(-time.Minute))
	s.Require().NoError(s.watermarks.SetLastRun(ctx, watermark.JobNewExport, runStart.Add(-time.Hour)))

	txn, err := s.exporter.ExecuteNew(ctx)
	s.Require().NoError(err)
	s.Equal(1, txn.Total)

	lines := s.fileLines(txn.FileName)
	s.Require().Len(lines, 1)
	s.Equal("1000002", lines[0][0:7])
}

func (s *ExporterSuite) TestExecuteNewSetsPriorSurnameFlag() {
	ctx := context.Background()
	p := s.seed("1000001", "Maiden", runStart.Add(-time.Hour))
	s.update(p, runStart.Add(-30*time.Minute), func(cp *models.Person) { cp.LastName = "Married" })

	txn, err := s.exporter.ExecuteNew(ctx)
	s.Require().NoError(err)

	lines := s.fileLines(txn.FileName)
	s.Require().Len(lines, 1)
	s.Equal("1", lines[0][41:42])
	s.Equal("Married", strings.TrimSpace(lines[0][24:41]))
}

func (s *ExporterSuite) TestExecuteNewEmptyWindow() {
	ctx := context.Background()

	txn, err := s.exporter.ExecuteNew(ctx)
	s.Require().NoError(err)
	s.Equal(ledger.StatusSuccess, txn.Status)
	s.Zero(txn.Total)
	s.Empty(s.fileLines(txn.FileName))

	_, ok, err := s.watermarks.LastRun(ctx, watermark.JobNewExport)
	s.Require().NoError(err)
	s.True(ok, "an empty window still advances the watermark")
}

func (s *ExporterSuite) TestExecuteAmend() {
	ctx := context.Background()
	p := s.seed("1000001", "Archer", runStart.Add(-2*time.Hour))
	s.update(p, runStart.Add(-50*time.Minute), func(cp *models.Person) { cp.LastName = "Blake" })
	s.update(p, runStart.Add(-40*time.Minute), func(cp *models.Person) { cp.LastName = "Cole" })
	s.update(p, runStart.Add(-30*time.Minute), func(cp *models.Person) {
		cp.NationalInsuranceNumber = "QQ123456C"
	})
	other := s.seed("1000002", "Okafor", runStart.Add(-2*time.Hour))
	dob := time.Date(1990, 11, 5, 0, 0, 0, 0, time.UTC)
	s.update(other, runStart.Add(-20*time.Minute), func(cp *models.Person) { cp.DateOfBirth = &dob })

	txn, err := s.exporter.ExecuteAmend(ctx)
	s.Require().NoError(err)
	s.Equal(ledger.StatusSuccess, txn.Status)
	s.Equal(3, txn.Total, "one row per person per changed field")
	s.Equal("Reg01_DTR_20240601_153000_Amend.txt", txn.FileName)

	lines := s.fileLines(txn.FileName)
	s.Require().Len(lines, 3)

	s.Run("surname change carries the prior surname", func() {
		s.Equal(encode.CodeNameChange, lines[0][78:86])
		s.Equal("Blake", strings.TrimSpace(lines[0][17:71]), "value before the latest change")
	})

	s.Run("nino change carries the current value", func() {
		s.Equal(encode.CodeAmendNino, lines[1][78:86])
		s.Equal("QQ123456C", lines[1][25:34])
	})

	s.Run("dob change renders ddMMyy with marker", func() {
		s.Equal(encode.CodeAmendDOB, lines[2][78:86])
		s.Equal("051190*", lines[2][17:24])
	})

	at, ok, err := s.watermarks.LastRun(ctx, watermark.JobAmendExport)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(runStart, at)
}

func (s *ExporterSuite) TestExecuteAmendIgnoresChangesBeforeWatermark() {
	ctx := context.Background()
	p := s.seed("1000001", "Archer", runStart.Add(-3*time.Hour))
	s.update(p, runStart.Add(-2*time.Hour), func(cp *models.Person) { cp.LastName = "Blake" })
	s.Require().NoError(s.watermarks.SetLastRun(ctx, watermark.JobAmendExport, runStart.Add(-time.Hour)))

	txn, err := s.exporter.ExecuteAmend(ctx)
	s.Require().NoError(err)
	s.Zero(txn.Total)
}

// failingBlobs refuses writes to force a driver-level failure.
type failingBlobs struct{}

func (failingBlobs) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not readable")
}

func (failingBlobs) Create(context.Context, string) (io.WriteCloser, error) {
	return nil, errors.New("interchange volume unavailable")
}

func (s *ExporterSuite) TestFailedRunNeverAdvancesWatermark() {
	ctx := context.Background()
	s.seed("1000001", "Kovacs", runStart.Add(-time.Hour))

	broken, err := New(s.persons, failingBlobs{}, s.ledger, s.watermarks, WithClock(clock))
	s.Require().NoError(err)

	txn, err := broken.ExecuteNew(ctx)
	s.Require().Error(err)
	s.Require().NotNil(txn)
	s.Equal(ledger.StatusFailed, txn.Status)

	_, ok, wErr := s.watermarks.LastRun(ctx, watermark.JobNewExport)
	s.Require().NoError(wErr)
	s.False(ok)

	stored, gErr := s.ledger.GetTransaction(ctx, txn.ID)
	s.Require().NoError(gErr)
	s.Equal(ledger.StatusFailed, stored.Status)
}

func (s *ExporterSuite) TestConstructorRejectsNilCollaborators() {
	_, err := New(nil, s.blobs, s.ledger, s.watermarks)
	s.Error(err)
	s.Contains(fmt.Sprint(err), "person store is required")
}
