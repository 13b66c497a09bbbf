package sheets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avielmenter/CritiQL/internal/adapters/sheets"
	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

const metadataJSON = `{"sheets":[
	{"properties":{"title":"Episode 1","index":0}},
	{"properties":{"title":"Episode 2","index":1}}
]}`

const valuesJSON = `{"spreadsheetId":"doc-1","valueRanges":[
	{"range":"'Episode 1'!A1:J3","majorDimension":"ROWS","values":[
		["Time","Character","Type of Roll","Total Value","Natural Value","Crit?","Damage Dealt","# Kills","Notes","Mystery"],
		["0:12:01","Vex'ahlia","Perception","17","12","","","","","ignored"],
		[],
		["1:00:00"," Grog ","Damage","","","","14","2"]
	]},
	{"range":"'Episode 2'!A1:Z1","majorDimension":"ROWS","values":[
		["character","ROLL TYPE"]
	]}
]}`

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	Convey("Given a spreadsheet API with two sheets", t, func() {
		var seen []*http.Request
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			seen = append(seen, r)
			w.Header().Set("Content-Type", "application/json")
			switch {
			case strings.HasSuffix(r.URL.Path, "/values:batchGet"):
				_, _ = w.Write([]byte(valuesJSON))
			case r.URL.Path == "/v4/spreadsheets/doc-1":
				_, _ = w.Write([]byte(metadataJSON))
			default:
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"message":"Requested entity was not found."}}`))
			}
		})
		client := sheets.NewClient(sheets.WithBaseURL(srv.URL), sheets.WithAPIKey("secret"))

		Convey("When the document is fetched", func() {
			doc, err := client.Fetch(context.Background(), "doc-1")

			Convey("Then sheets keep their titles in tab order", func() {
				So(err, ShouldBeNil)
				So(doc.ID, ShouldEqual, "doc-1")
				So(doc.Sheets, ShouldHaveLength, 2)
				So(doc.Sheets[0].Title, ShouldEqual, "Episode 1")
				So(doc.Sheets[1].Title, ShouldEqual, "Episode 2")
			})

			Convey("Then headers are aliased and blank rows dropped", func() {
				rows := doc.Sheets[0].Rows
				So(rows, ShouldHaveLength, 2)
				So(rows[0], ShouldResemble, model.Row{
					model.ColumnTime:     "0:12:01",
					model.ColumnName:     "Vex'ahlia",
					model.ColumnRollType: "Perception",
					model.ColumnTotal:    "17",
					model.ColumnNatural:  "12",
				})
				So(rows[1][model.ColumnName], ShouldEqual, "Grog")
				So(rows[1][model.ColumnDamage], ShouldEqual, "14")
				So(rows[1][model.ColumnKills], ShouldEqual, "2")
				So(doc.Sheets[1].Rows, ShouldBeEmpty)
			})

			Convey("Then requests carry the key and formatted values", func() {
				So(seen, ShouldHaveLength, 2)
				So(seen[0].URL.Query().Get("key"), ShouldEqual, "secret")
				q := seen[1].URL.Query()
				So(q.Get("valueRenderOption"), ShouldEqual, "FORMATTED_VALUE")
				So(q["ranges"], ShouldResemble, []string{"'Episode 1'!A1:Z2000", "'Episode 2'!A1:Z2000"})
			})
		})

		Convey("When the document does not exist", func() {
			_, err := client.Fetch(context.Background(), "nope")

			Convey("Then ErrDocumentNotFound is returned", func() {
				So(errors.Is(err, sheets.ErrDocumentNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given an API that fails", t, func() {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
		})
		client := sheets.NewClient(sheets.WithBaseURL(srv.URL))

		Convey("Then the API message is surfaced", func() {
			_, err := client.Fetch(context.Background(), "doc-1")
			So(errors.Is(err, sheets.ErrRequestFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "API key not valid")
		})
	})

	Convey("Given an API slower than the timeout", t, func() {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		})
		client := sheets.NewClient(sheets.WithBaseURL(srv.URL), sheets.WithTimeout(50*time.Millisecond))

		Convey("Then the fetch fails", func() {
			_, err := client.Fetch(context.Background(), "doc-1")
			So(errors.Is(err, sheets.ErrRequestFailed), ShouldBeTrue)
		})
	})

	Convey("Given a response with mismatched ranges", t, func() {
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/values:batchGet") {
				_, _ = w.Write([]byte(`{"valueRanges":[]}`))
				return
			}
			_, _ = w.Write([]byte(metadataJSON))
		})
		client := sheets.NewClient(sheets.WithBaseURL(srv.URL))

		Convey("Then ErrMalformedResponse is returned", func() {
			_, err := client.Fetch(context.Background(), "doc-1")
			So(errors.Is(err, sheets.ErrMalformedResponse), ShouldBeTrue)
		})
	})
}
