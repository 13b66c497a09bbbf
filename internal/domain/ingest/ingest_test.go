package ingest_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/avielmenter/CritiQL/internal/adapters/repository"
	"github.com/avielmenter/CritiQL/internal/domain/canon"
	"github.com/avielmenter/CritiQL/internal/domain/ingest"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/internal/domain/query"
	"github.com/avielmenter/CritiQL/internal/domain/taxonomy"
	"github.com/avielmenter/CritiQL/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func ptr[T any](v T) *T { return &v }

type fakeFetcher struct {
	docs  map[string]*model.Document
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, id string) (*model.Document, error) {
	f.calls.Add(1)
	doc, ok := f.docs[id]
	if !ok {
		return nil, errors.New("404")
	}
	return doc, nil
}

func openStore(t *testing.T) *repository.Store {
	t.Helper()
	s, err := repository.Open(context.Background(), repository.MemoryPath, repository.WithMetricsUpdateInterval(0))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func episodeFive() *model.Document {
	return &model.Document{
		ID: "doc-c1",
		Sheets: []model.Sheet{{
			Title: "Episode 5",
			Rows: []model.Row{
				{model.ColumnName: "vex'ahlia", model.ColumnRollType: "dex save", model.ColumnTotal: "15"},
				{model.ColumnName: "Grog", model.ColumnRollType: "Nat 20", model.ColumnNatural: "nat 20"},
			},
		}},
	}
}

func TestSyncEndToEnd(t *testing.T) {
	Convey("Given a two-row sheet titled Episode 5", t, func() {
		ctx := context.Background()
		store := openStore(t)
		fetcher := &fakeFetcher{docs: map[string]*model.Document{"doc-c1": episodeFive()}}
		engine := ingest.NewEngine(fetcher, store)
		queries := query.NewEngine(store)

		Convey("When it is synced", func() {
			report, err := engine.Sync(ctx, "doc-c1")
			So(err, ShouldBeNil)

			Convey("Then one episode, two participants and two rolls exist", func() {
				So(report.Episodes, ShouldEqual, 1)
				So(report.Participants, ShouldEqual, 2)
				So(report.Inserted, ShouldEqual, 2)
				So(report.Dropped, ShouldEqual, 0)

				eps, err := queries.FindEpisodes(ctx, query.EpisodeFilter{})
				So(err, ShouldBeNil)
				So(eps, ShouldHaveLength, 1)
				So(*eps[0].Ordinal, ShouldEqual, 5)
				So(eps[0].Campaign, ShouldEqual, 1)
				So(eps[0].RollsRecorded, ShouldBeTrue)

				people, err := queries.FindParticipants(ctx, query.ParticipantFilter{})
				So(err, ShouldBeNil)
				So(people, ShouldHaveLength, 2)
			})

			Convey("Then roll types are canonical and the unmatched one is reported", func() {
				rolls, err := queries.FindRolls(ctx, query.RollFilter{}, query.Scope{})
				So(err, ShouldBeNil)
				So(rolls, ShouldHaveLength, 2)
				So(rolls[0].RollType, ShouldEqual, taxonomy.MustCode("DEXTERITY_SAVE"))
				So(*rolls[0].Total, ShouldEqual, 15)
				So(rolls[1].RollType, ShouldEqual, taxonomy.Unknown)
				So(rolls[1].RawType, ShouldEqual, "Nat 20")

				So(report.Diagnostics, ShouldHaveLength, 1)
				So(report.Diagnostics[0].Kind, ShouldEqual, ingest.DiagnosticUnknownRollType)
				So(report.Diagnostics[0].Row, ShouldEqual, 2)
				So(report.Diagnostics[0].Token, ShouldEqual, "NAT_20")
			})

			Convey("Then natural >= 20 in the episode finds only Grog's roll", func() {
				eps, err := queries.FindEpisodes(ctx, query.EpisodeFilter{Ordinal: ptr(5)})
				So(err, ShouldBeNil)
				So(eps, ShouldHaveLength, 1)

				rolls, err := queries.FindRolls(ctx,
					query.RollFilter{NaturalAtLeast: ptr(20)},
					query.EpisodeScope(eps[0].ID))
				So(err, ShouldBeNil)
				So(rolls, ShouldHaveLength, 1)
				So(*rolls[0].Natural, ShouldEqual, 20)

				grog, err := queries.FindParticipants(ctx, query.ParticipantFilter{Name: ptr("grog")})
				So(err, ShouldBeNil)
				So(grog, ShouldHaveLength, 1)
				So(rolls[0].ParticipantID, ShouldEqual, grog[0].ID)
			})
		})
	})
}

func TestSyncIdempotence(t *testing.T) {
	Convey("Given a document with an old and a latest episode", t, func() {
		ctx := context.Background()
		store := openStore(t)
		doc := &model.Document{
			ID: "doc-c1",
			Sheets: []model.Sheet{
				{Title: "Episode 1", Rows: []model.Row{
					{model.ColumnName: "Keyleth", model.ColumnRollType: "Wisdom", model.ColumnTotal: "11"},
					{model.ColumnName: "Scanlan", model.ColumnRollType: "Persuasion", model.ColumnTotal: "22"},
				}},
				{Title: "Episode 2", Rows: []model.Row{
					{model.ColumnName: "Pike", model.ColumnRollType: "Wisdom Save", model.ColumnTotal: "9"},
				}},
			},
		}
		engine := ingest.NewEngine(&fakeFetcher{docs: map[string]*model.Document{"doc-c1": doc}}, store)

		first, err := engine.Sync(ctx, "doc-c1")
		So(err, ShouldBeNil)
		So(first.Inserted, ShouldEqual, 3)
		So(first.Cleared, ShouldEqual, 0)
		So(first.RefreshedEpisode, ShouldEqual, "Episode 2")

		latest, ok, err := store.LatestEpisode(ctx, 1)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		before, err := store.FindRolls(ctx, query.Predicate{Clauses: []query.Clause{
			{Field: query.FieldEpisodeID, Op: query.OpEq, Value: latest.ID},
		}})
		So(err, ShouldBeNil)
		So(before, ShouldHaveLength, 1)

		Convey("When the unchanged document is synced again", func() {
			second, err := engine.Sync(ctx, "doc-c1")
			So(err, ShouldBeNil)

			Convey("Then only the latest episode is replaced", func() {
				So(second.Cleared, ShouldEqual, 1)
				So(second.Inserted, ShouldEqual, 1)
				So(second.Skipped, ShouldEqual, 1)

				counts, err := store.Counts(ctx)
				So(err, ShouldBeNil)
				So(counts.Rolls, ShouldEqual, 3)
				So(counts.Participants, ShouldEqual, 3)
				So(counts.Episodes, ShouldEqual, 2)
			})

			Convey("Then the latest episode's record was deleted and reinserted", func() {
				after, err := store.FindRolls(ctx, query.Predicate{Clauses: []query.Clause{
					{Field: query.FieldEpisodeID, Op: query.OpEq, Value: latest.ID},
				}})
				So(err, ShouldBeNil)
				So(after, ShouldHaveLength, 1)
				So(after[0].ID, ShouldNotEqual, before[0].ID)
				So(*after[0].Total, ShouldEqual, 9)
			})
		})

		Convey("When the document belongs to an older campaign", func() {
			other := ingest.NewEngine(
				&fakeFetcher{docs: map[string]*model.Document{"doc-c1": doc}},
				store,
				ingest.WithCampaigns(map[string]int{"doc-c1": 1}),
				ingest.WithCurrentCampaign(2),
			)
			report, err := other.Sync(ctx, "doc-c1")

			Convey("Then nothing is refreshed or inserted", func() {
				So(err, ShouldBeNil)
				So(report.Cleared, ShouldEqual, 0)
				So(report.RefreshedEpisode, ShouldEqual, "")
				So(report.Inserted, ShouldEqual, 0)
				So(report.Skipped, ShouldEqual, 2)
			})
		})
	})
}

func TestSyncFailures(t *testing.T) {
	Convey("Given a source that cannot produce the document", t, func() {
		ctx := context.Background()
		store := openStore(t)
		engine := ingest.NewEngine(&fakeFetcher{docs: map[string]*model.Document{}}, store)

		Convey("When it is synced", func() {
			report, err := engine.Sync(ctx, "missing")

			Convey("Then the sync fails without writing anything", func() {
				So(errors.Is(err, ingest.ErrSourceUnavailable), ShouldBeTrue)
				So(report.Inserted, ShouldEqual, 0)
				counts, err := store.Counts(ctx)
				So(err, ShouldBeNil)
				So(counts.Episodes, ShouldEqual, 0)
			})
		})
	})

	Convey("Given rows naming placeholders or nobody", t, func() {
		ctx := context.Background()
		store := openStore(t)
		doc := &model.Document{ID: "d", Sheets: []model.Sheet{{
			Title: "Episode 3",
			Rows: []model.Row{
				{model.ColumnName: "N/A", model.ColumnRollType: "Attack", model.ColumnTotal: "12"},
				{model.ColumnRollType: "Attack", model.ColumnTotal: "13"},
				{model.ColumnName: "Percy", model.ColumnRollType: "Attack", model.ColumnTotal: "14"},
				{model.ColumnName: "Stunt Double", model.ColumnRollType: "Attack", model.ColumnTotal: "15"},
			},
		}}}
		engine := ingest.NewEngine(
			&fakeFetcher{docs: map[string]*model.Document{"d": doc}},
			store,
			ingest.WithBlocklist(canon.NewBlocklist("N/A", "stunt double")),
		)

		Convey("When the sheet is synced", func() {
			report, err := engine.Sync(ctx, "d")

			Convey("Then those rows are dropped and counted", func() {
				So(err, ShouldBeNil)
				So(report.Participants, ShouldEqual, 1)
				So(report.Inserted, ShouldEqual, 1)
				So(report.Dropped, ShouldEqual, 3)
				So(report.Diagnostics, ShouldHaveLength, 3)
				So(report.Diagnostics[0].Kind, ShouldEqual, ingest.DiagnosticUnresolvedParticipant)
			})
		})
	})

	Convey("Given a sheet whose rows are all unresolvable", t, func() {
		ctx := context.Background()
		store := openStore(t)
		doc := &model.Document{ID: "d", Sheets: []model.Sheet{{
			Title: "Episode 9",
			Rows:  []model.Row{{model.ColumnName: "?", model.ColumnRollType: "Attack"}},
		}}}
		engine := ingest.NewEngine(&fakeFetcher{docs: map[string]*model.Document{"d": doc}}, store)

		Convey("Then the episode stays unrecorded", func() {
			_, err := engine.Sync(ctx, "d")
			So(err, ShouldBeNil)
			ep, ok, err := store.LatestEpisode(ctx, 1)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(ep.RollsRecorded, ShouldBeFalse)
		})
	})
}

func TestSyncAll(t *testing.T) {
	Convey("Given two documents in different campaigns and one missing", t, func() {
		ctx := context.Background()
		store := openStore(t)
		c2 := &model.Document{ID: "doc-c2", Sheets: []model.Sheet{
			{Title: "Episode 2-7", Rows: []model.Row{{model.ColumnName: "Fjord", model.ColumnRollType: "Athletics", model.ColumnTotal: "18"}}},
		}}
		fetcher := &fakeFetcher{docs: map[string]*model.Document{"doc-c1": episodeFive(), "doc-c2": c2}}
		engine := ingest.NewEngine(fetcher, store,
			ingest.WithCampaigns(map[string]int{"doc-c1": 1, "doc-c2": 2}),
			ingest.WithCurrentCampaign(2),
			ingest.WithFanout(2),
		)

		Convey("When all are synced", func() {
			reports, err := engine.SyncAll(ctx, []string{"doc-c1", "doc-c2", "gone"})

			Convey("Then the good documents are ingested and the failure is reported", func() {
				So(errors.Is(err, ingest.ErrSourceUnavailable), ShouldBeTrue)
				So(reports, ShouldHaveLength, 3)
				So(reports[0].Campaign, ShouldEqual, 1)
				So(reports[0].Inserted, ShouldEqual, 2)
				So(reports[1].Campaign, ShouldEqual, 2)
				So(reports[1].RefreshedEpisode, ShouldEqual, "Episode 2-7")
				So(reports[1].Inserted, ShouldEqual, 1)
				So(reports[2].Inserted, ShouldEqual, 0)
				So(fetcher.calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When nothing is asked for", func() {
			_, err := engine.SyncAll(ctx, nil)
			So(errors.Is(err, ingest.ErrNoDocuments), ShouldBeTrue)
		})
	})
}

func TestOrdinal(t *testing.T) {
	Convey("Given sheet titles", t, func() {
		So(*ingest.Ordinal("Episode 12"), ShouldEqual, 12)
		So(*ingest.Ordinal("episode 2-40 (part 2)"), ShouldEqual, 40)
		So(ingest.Ordinal("Bonus"), ShouldBeNil)
		So(ingest.Ordinal("Totals"), ShouldBeNil)
	})
}

func TestRefreshLatest(t *testing.T) {
	Convey("Given a document whose last tab is not an episode", t, func() {
		ctx := context.Background()
		store := openStore(t)
		doc := &model.Document{
			ID: "doc-c1",
			Sheets: []model.Sheet{
				{Title: "Episode 1", Rows: []model.Row{
					{model.ColumnName: "Keyleth", model.ColumnRollType: "Wisdom", model.ColumnTotal: "11"},
				}},
				{Title: "Episode 2", Rows: []model.Row{
					{model.ColumnName: "Pike", model.ColumnRollType: "Wisdom Save", model.ColumnTotal: "9"},
				}},
				{Title: "Totals"},
			},
		}
		engine := ingest.NewEngine(&fakeFetcher{docs: map[string]*model.Document{"doc-c1": doc}}, store)

		first, err := engine.Sync(ctx, "doc-c1")
		So(err, ShouldBeNil)
		So(first.RefreshedEpisode, ShouldEqual, "Episode 2")

		Convey("When a row is added to the last episode and the document is synced again", func() {
			doc.Sheets[1].Rows = append(doc.Sheets[1].Rows,
				model.Row{model.ColumnName: "Vax", model.ColumnRollType: "Stealth", model.ColumnTotal: "27"})
			second, err := engine.Sync(ctx, "doc-c1")
			So(err, ShouldBeNil)

			Convey("Then the last episode is re-imported with the new row", func() {
				So(second.RefreshedEpisode, ShouldEqual, "Episode 2")
				So(second.Cleared, ShouldEqual, 1)
				So(second.Inserted, ShouldEqual, 2)

				latest, ok, err := store.LatestEpisode(ctx, 1)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(latest.Title, ShouldEqual, "Episode 2")
				rolls, err := store.FindRolls(ctx, query.Predicate{Clauses: []query.Clause{
					{Field: query.FieldEpisodeID, Op: query.OpEq, Value: latest.ID},
				}})
				So(err, ShouldBeNil)
				So(rolls, ShouldHaveLength, 2)
			})

			Convey("Then the summary tab has no ordinal", func() {
				eps, err := store.FindEpisodes(ctx, query.Predicate{Clauses: []query.Clause{
					{Field: query.FieldTitle, Op: query.OpEq, Value: "Totals"},
				}})
				So(err, ShouldBeNil)
				So(eps, ShouldHaveLength, 1)
				So(eps[0].Ordinal, ShouldBeNil)
			})
		})
	})

	Convey("Given a recorded latest episode", t, func() {
		ctx := context.Background()
		store := openStore(t)
		fetcher := &fakeFetcher{docs: map[string]*model.Document{"doc-c1": episodeFive()}}
		engine := ingest.NewEngine(fetcher, store)
		_, err := engine.Sync(ctx, "doc-c1")
		So(err, ShouldBeNil)

		rollCount := func() int64 {
			counts, err := store.Counts(ctx)
			So(err, ShouldBeNil)
			return counts.Rolls
		}
		So(rollCount(), ShouldEqual, 2)

		Convey("When the source returns a document without sheets", func() {
			fetcher.docs["doc-c1"] = &model.Document{ID: "doc-c1"}
			report, err := engine.Sync(ctx, "doc-c1")

			Convey("Then the sync fails and the episode keeps its rolls", func() {
				So(errors.Is(err, ingest.ErrSourceUnavailable), ShouldBeTrue)
				So(report.Cleared, ShouldEqual, 0)
				So(rollCount(), ShouldEqual, 2)
			})
		})

		Convey("When a document without that episode's sheet is ingested", func() {
			report, err := engine.Ingest(ctx, &model.Document{ID: "doc-c1", Sheets: []model.Sheet{
				{Title: "Episode 3", Rows: []model.Row{
					{model.ColumnName: "Percy", model.ColumnRollType: "Attack", model.ColumnTotal: "14"},
				}},
			}})

			Convey("Then the latest episode is left alone", func() {
				So(err, ShouldBeNil)
				So(report.Cleared, ShouldEqual, 0)
				So(report.RefreshedEpisode, ShouldEqual, "")
				So(report.Inserted, ShouldEqual, 1)
				So(rollCount(), ShouldEqual, 3)
			})
		})
	})
}
