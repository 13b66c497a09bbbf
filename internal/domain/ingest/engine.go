// Package ingest turns fetched spreadsheets into episodes, participants and
// roll records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/sanitize"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
)

// Default engine configuration.
const (
	DefaultCampaign = 1
	DefaultFanout   = 4
)

var ordinalPattern = regexp.MustCompile(`(?i)Episode (2-)?(\d+)`)

// Fetcher produces a whole spreadsheet.
type Fetcher interface {
	Fetch(ctx context.Context, documentID string) (*model.Document, error)
}

// Store is the persistence the engine writes to.
type Store interface {
	UpsertEpisode(ctx context.Context, ep model.Episode) (model.Episode, error)
	UpsertParticipant(ctx context.Context, name string) (model.Participant, error)
	LatestEpisode(ctx context.Context, campaign int) (model.Episode, bool, error)
	ClearEpisodeRolls(ctx context.Context, episodeID string) (int64, error)
	InsertRolls(ctx context.Context, records []model.RollRecord) (int64, error)
	MarkRecorded(ctx context.Context, episodeIDs []string) error
}

// Engine runs syncs. It holds no per-sync state and may be shared, but two
// overlapping syncs of the same campaign are not supported.
type Engine struct {
	fetcher   Fetcher
	store     Store
	logger    logger.Logger
	blocklist *canon.Blocklist
	campaigns map[string]int
	current   int
	fanout    int
	now       func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(fetcher Fetcher, store Store, opts ...Option) *Engine {
	e := &Engine{
		fetcher:   fetcher,
		store:     store,
		logger:    logger.Get().Named("ingest"),
		blocklist: canon.NewBlocklist(canon.DefaultBlocklist...),
		campaigns: make(map[string]int),
		current:   DefaultCampaign,
		fanout:    DefaultFanout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Campaign returns the campaign a document belongs to.
func (e *Engine) Campaign(documentID string) int {
	if c, ok := e.campaigns[documentID]; ok && c > 0 {
		return c
	}
	return DefaultCampaign
}

// Sync fetches one document and ingests it. When the fetch fails the error
// wraps ErrSourceUnavailable and nothing is written.
func (e *Engine) Sync(ctx context.Context, documentID string) (Report, error) {
	start := e.now()
	doc, err := e.fetch(ctx, documentID)
	if err != nil {
		e.finish(ctx, start, metrics.SyncUnavailable)
		return Report{DocumentID: documentID, Campaign: e.Campaign(documentID)}, err
	}
	return e.ingestTimed(ctx, start, doc)
}

// SyncAll fetches every document concurrently, then ingests them one after
// another. Reports are returned in input order; documents that failed keep
// an empty report and their errors are joined.
func (e *Engine) SyncAll(ctx context.Context, documentIDs []string) ([]Report, error) {
	if len(documentIDs) == 0 {
		return nil, ErrNoDocuments
	}
	start := e.now()
	docs := make([]*model.Document, len(documentIDs))
	errs := make([]error, len(documentIDs))

	var g errgroup.Group
	g.SetLimit(e.fanout)
	for i, id := range documentIDs {
		g.Go(func() error {
			docs[i], errs[i] = e.fetch(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	reports := make([]Report, len(documentIDs))
	for i, id := range documentIDs {
		if errs[i] != nil {
			e.finish(ctx, start, metrics.SyncUnavailable)
			reports[i] = Report{DocumentID: id, Campaign: e.Campaign(id)}
			continue
		}
		reports[i], errs[i] = e.ingestTimed(ctx, start, docs[i])
	}
	return reports, errors.Join(errs...)
}

func (e *Engine) fetch(ctx context.Context, documentID string) (*model.Document, error) {
	doc, err := e.fetcher.Fetch(ctx, documentID)
	switch {
	case err != nil:
	case doc == nil:
		err = errors.New("empty response")
	case len(doc.Sheets) == 0:
		err = errors.New("document has no sheets")
	}
	if err != nil {
		e.logger.Error(ctx, "document fetch failed",
			logger.String("document", documentID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, documentID, err)
	}
	if doc.ID == "" {
		doc.ID = documentID
	}
	return doc, nil
}

func (e *Engine) ingestTimed(ctx context.Context, start time.Time, doc *model.Document) (Report, error) {
	report, err := e.Ingest(ctx, doc)
	if err != nil {
		e.finish(ctx, start, metrics.SyncFailed)
		e.logger.Error(ctx, "sync failed",
			logger.String("document", doc.ID),
			logger.Error(err),
		)
		return report, err
	}
	e.finish(ctx, start, metrics.SyncSucceeded)
	e.logger.Info(ctx, "sync complete",
		logger.String("document", report.DocumentID),
		logger.Int("campaign", report.Campaign),
		logger.Int("episodes", report.Episodes),
		logger.Int64("inserted", report.Inserted),
		logger.Int("dropped", report.Dropped),
		logger.Int64("cleared", report.Cleared),
		logger.Int("diagnostics", len(report.Diagnostics)),
		logger.Duration("took", e.now().Sub(start)),
	)
	return report, nil
}

func (e *Engine) finish(ctx context.Context, start time.Time, outcome metrics.SyncOutcome) {
	if err := metrics.RecordSyncRun(outcome, float64(e.now().Sub(start).Milliseconds())); err != nil {
		e.logger.Warn(ctx, "record sync run", logger.Error(err))
	}
}

// sheetEpisode pairs a sheet with its stored episode.
type sheetEpisode struct {
	sheet   model.Sheet
	episode model.Episode
}

// Ingest writes an already-fetched document. Rows of episodes that are
// already recorded are skipped, except for the current campaign's latest
// episode, which is always replaced.
func (e *Engine) Ingest(ctx context.Context, doc *model.Document) (Report, error) {
	report := Report{DocumentID: doc.ID, Campaign: e.Campaign(doc.ID)}

	sheets := e.uniqueSheets(doc, &report)
	episodes, err := e.upsertEpisodes(ctx, sheets, report.Campaign)
	if err != nil {
		return report, err
	}
	report.Episodes = len(episodes)

	participants, err := e.upsertParticipants(ctx, sheets)
	if err != nil {
		return report, err
	}
	report.Participants = len(participants)

	if report.Campaign == e.current {
		if err := e.refreshLatest(ctx, episodes, &report); err != nil {
			return report, err
		}
	}

	records, touched := e.buildRecords(ctx, episodes, participants, &report)
	inserted, err := e.store.InsertRolls(ctx, records)
	if err != nil {
		return report, fmt.Errorf("insert rolls: %w", err)
	}
	report.Inserted = inserted
	metrics.RecordRollsInserted(inserted)

	if err := e.store.MarkRecorded(ctx, touched); err != nil {
		return report, fmt.Errorf("mark recorded: %w", err)
	}
	return report, nil
}

// uniqueSheets drops untitled sheets and repeated titles.
func (e *Engine) uniqueSheets(doc *model.Document, report *Report) []model.Sheet {
	seen := make(map[string]struct{}, len(doc.Sheets))
	out := make([]model.Sheet, 0, len(doc.Sheets))
	for _, sh := range doc.Sheets {
		sh.Title = strings.TrimSpace(sh.Title)
		if _, dup := seen[sh.Title]; dup || sh.Title == "" {
			report.Diagnostics = append(report.Diagnostics, Diagnostic{
				Kind:    DiagnosticSkippedSheet,
				Episode: sh.Title,
			})
			continue
		}
		seen[sh.Title] = struct{}{}
		out = append(out, sh)
	}
	return out
}

// Ordinal extracts the episode number from a sheet title. Titles that do not
// name an episode, such as summary tabs, have no ordinal.
func Ordinal(title string) *int {
	m := ordinalPattern.FindStringSubmatch(title)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil
	}
	return &n
}

func (e *Engine) upsertEpisodes(ctx context.Context, sheets []model.Sheet, campaign int) ([]sheetEpisode, error) {
	out := make([]sheetEpisode, len(sheets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	for i, sh := range sheets {
		g.Go(func() error {
			ep, err := e.store.UpsertEpisode(gctx, model.Episode{
				Title:    sh.Title,
				Ordinal:  Ordinal(sh.Title),
				Campaign: campaign,
			})
			if err != nil {
				return fmt.Errorf("upsert episode: %w", err)
			}
			metrics.RecordEpisodeUpserted()
			out[i] = sheetEpisode{sheet: sh, episode: ep}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// upsertParticipants stores every distinct, non-blocked canonical name and
// returns name → participant ID.
func (e *Engine) upsertParticipants(ctx context.Context, sheets []model.Sheet) (map[string]string, error) {
	names := make(map[string]struct{})
	for _, sh := range sheets {
		for _, row := range sh.Rows {
			name := canon.Name(row[model.ColumnName])
			if e.blocklist.Blocked(name) {
				continue
			}
			names[name] = struct{}{}
		}
	}

	var (
		mu  sync.Mutex
		ids = make(map[string]string, len(names))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanout)
	for name := range names {
		g.Go(func() error {
			p, err := e.store.UpsertParticipant(gctx, name)
			if err != nil {
				return fmt.Errorf("upsert participant: %w", err)
			}
			metrics.RecordParticipantUpserted()
			mu.Lock()
			ids[name] = p.ID
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// refreshLatest empties the current campaign's latest episode so it is
// imported again in full. Nothing is cleared unless the episode's sheet is
// part of the document being ingested.
func (e *Engine) refreshLatest(ctx context.Context, episodes []sheetEpisode, report *Report) error {
	latest, ok, err := e.store.LatestEpisode(ctx, e.current)
	if err != nil {
		return fmt.Errorf("find latest episode: %w", err)
	}
	if !ok || !slices.ContainsFunc(episodes, func(se sheetEpisode) bool { return se.episode.ID == latest.ID }) {
		return nil
	}
	cleared, err := e.store.ClearEpisodeRolls(ctx, latest.ID)
	if err != nil {
		return fmt.Errorf("clear latest episode: %w", err)
	}
	report.Cleared = cleared
	report.RefreshedEpisode = latest.Title
	metrics.RecordRollsCleared(cleared)

	for i := range episodes {
		if episodes[i].episode.ID == latest.ID {
			episodes[i].episode.RollsRecorded = false
		}
	}
	return nil
}

// buildRecords turns the rows of every unrecorded episode into records. It
// returns the records and the IDs of episodes that received at least one.
func (e *Engine) buildRecords(
	ctx context.Context, episodes []sheetEpisode, participants map[string]string, report *Report,
) ([]model.RollRecord, []string) {
	var (
		records []model.RollRecord
		touched []string
	)
	for _, se := range episodes {
		if se.episode.RollsRecorded {
			report.Skipped++
			continue
		}
		before := len(records)
		for i, row := range se.sheet.Rows {
			rec, ok := e.buildRecord(ctx, se.episode, i+1, row, participants, report)
			if ok {
				records = append(records, rec)
			}
		}
		if len(records) > before {
			touched = append(touched, se.episode.ID)
		}
	}
	return records, touched
}

func (e *Engine) buildRecord(
	ctx context.Context, ep model.Episode, pos int, row model.Row, participants map[string]string, report *Report,
) (model.RollRecord, bool) {
	rawName := row[model.ColumnName]
	participantID, ok := participants[canon.Name(rawName)]
	if !ok {
		report.Dropped++
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Kind:    DiagnosticUnresolvedParticipant,
			Episode: ep.Title,
			Row:     pos,
			Label:   rawName,
		})
		metrics.RecordRowDropped("unresolved_participant")
		return model.RollRecord{}, false
	}

	rawType := strings.TrimSpace(row[model.ColumnRollType])
	res := canon.RollType(rawType)
	if !res.Matched {
		report.Diagnostics = append(report.Diagnostics, Diagnostic{
			Kind:    DiagnosticUnknownRollType,
			Episode: ep.Title,
			Row:     pos,
			Label:   rawType,
			Token:   res.Token,
		})
		metrics.RecordUnknownRollType()
		e.logger.Warn(ctx, "unknown roll type",
			logger.String("episode", ep.Title),
			logger.Int("row", pos),
			logger.String("label", rawType),
			logger.String("token", res.Token),
		)
	}

	return model.RollRecord{
		EpisodeID:     ep.ID,
		ParticipantID: participantID,
		Time:          sanitize.ParseTime(row[model.ColumnTime]),
		RollType:      res.Code,
		RawType:       rawType,
		Total:         sanitize.Int(row[model.ColumnTotal]),
		Natural:       sanitize.Natural(row[model.ColumnNatural]),
		Crit:          sanitize.Crit(row[model.ColumnCrit]),
		Damage:        sanitize.Text(row[model.ColumnDamage]),
		Kills:         sanitize.Kills(row[model.ColumnKills]),
		Notes:         sanitize.Text(row[model.ColumnNotes]),
	}, true
}
