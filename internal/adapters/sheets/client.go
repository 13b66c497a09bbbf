package sheets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avielmenter/CritiQL/internal/domain/model"
	"github.com/avielmenter/CritiQL/pkg/logger"
	"github.com/avielmenter/CritiQL/pkg/metrics"
	"github.com/tidwall/gjson"
)

// Default client configuration constants.
const (
	DefaultBaseURL = "https://sheets.googleapis.com"
	defaultTimeout = 30 * time.Second
	defaultMaxRows = 2000
	maxColumns     = 26
	maxBodyBytes   = 32 << 20
)

// defaultAliases maps normalized header text to canonical column labels.
var defaultAliases = map[string]string{
	"episode":        model.ColumnEpisode,
	"time":           model.ColumnTime,
	"timestamp":      model.ColumnTime,
	"time stamp":     model.ColumnTime,
	"character":      model.ColumnName,
	"character name": model.ColumnName,
	"name":           model.ColumnName,
	"type of roll":   model.ColumnRollType,
	"roll type":      model.ColumnRollType,
	"type":           model.ColumnRollType,
	"total value":    model.ColumnTotal,
	"total":          model.ColumnTotal,
	"natural value":  model.ColumnNatural,
	"natural roll":   model.ColumnNatural,
	"natural":        model.ColumnNatural,
	"crit?":          model.ColumnCrit,
	"crit":           model.ColumnCrit,
	"critical?":      model.ColumnCrit,
	"damage":         model.ColumnDamage,
	"damage dealt":   model.ColumnDamage,
	"# kills":        model.ColumnKills,
	"# of kills":     model.ColumnKills,
	"kills":          model.ColumnKills,
	"notes":          model.ColumnNotes,
	"note":           model.ColumnNotes,
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Client fetches whole spreadsheets. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	maxRows int
	aliases map[string]string
	logger  logger.Logger
}

// NewClient creates a Client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
		maxRows: defaultMaxRows,
		aliases: make(map[string]string, len(defaultAliases)),
		logger:  logger.Get().Named("sheets"),
	}
	for k, v := range defaultAliases {
		c.aliases[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// Fetch reads every sheet of the document. Each sheet's first row is its
// header; headers are mapped to canonical labels and blank rows are skipped.
func (c *Client) Fetch(ctx context.Context, documentID string) (doc *model.Document, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordSheetsFetch(float64(time.Since(start).Milliseconds()), err != nil)
	}()

	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrRequestFailed)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	titles, err := c.sheetTitles(ctx, documentID)
	if err != nil {
		return nil, err
	}
	doc = &model.Document{ID: documentID}
	if len(titles) == 0 {
		return doc, nil
	}

	ranges := make([]string, len(titles))
	for i, title := range titles {
		ranges[i] = SheetRange(title, maxColumns, c.maxRows).String()
	}
	body, err := c.get(ctx, documentID, "/values:batchGet", url.Values{
		"ranges":            ranges,
		"valueRenderOption": {"FORMATTED_VALUE"},
		"majorDimension":    {"ROWS"},
	})
	if err != nil {
		return nil, err
	}

	valueRanges := gjson.GetBytes(body, "valueRanges").Array()
	if len(valueRanges) != len(titles) {
		return nil, fmt.Errorf("%w: asked for %d ranges, got %d", ErrMalformedResponse, len(titles), len(valueRanges))
	}
	for i, vr := range valueRanges {
		title := titles[i]
		if r, perr := ParseRange(vr.Get("range").String()); perr == nil && r.Sheet != "" && r.Sheet != title {
			return nil, fmt.Errorf("%w: range %d belongs to %q, want %q", ErrMalformedResponse, i, r.Sheet, title)
		}
		doc.Sheets = append(doc.Sheets, model.Sheet{
			Title: title,
			Rows:  c.rows(vr.Get("values")),
		})
	}

	c.logger.Debug(ctx, "document fetched",
		logger.String("document", documentID),
		logger.Int("sheets", len(doc.Sheets)),
	)
	return doc, nil
}

// sheetTitles lists the non-blank sheet titles in tab order.
func (c *Client) sheetTitles(ctx context.Context, documentID string) ([]string, error) {
	body, err := c.get(ctx, documentID, "", url.Values{
		"fields": {"sheets.properties(title)"},
	})
	if err != nil {
		return nil, err
	}
	sheets := gjson.GetBytes(body, "sheets")
	if !sheets.Exists() {
		return nil, nil
	}
	if !sheets.IsArray() {
		return nil, fmt.Errorf("%w: sheets is not a list", ErrMalformedResponse)
	}

	var titles []string
	for _, s := range sheets.Array() {
		title := s.Get("properties.title").String()
		if strings.TrimSpace(title) == "" {
			continue
		}
		titles = append(titles, title)
	}
	return titles, nil
}

// rows converts a values matrix into canonical rows.
func (c *Client) rows(values gjson.Result) []model.Row {
	matrix := values.Array()
	if len(matrix) == 0 {
		return nil
	}

	header := matrix[0].Array()
	labels := make([]string, len(header))
	for i, h := range header {
		if canonical, ok := c.aliases[normalizeHeader(h.String())]; ok {
			labels[i] = canonical
		}
	}

	var out []model.Row
	for _, line := range matrix[1:] {
		row := model.Row{}
		for i, cell := range line.Array() {
			if i >= len(labels) || labels[i] == "" {
				continue
			}
			text := strings.TrimSpace(cell.String())
			if text == "" {
				continue
			}
			row[labels[i]] = text
		}
		if len(row) > 0 {
			out = append(out, row)
		}
	}
	return out
}

// get issues a GET against the spreadsheet resource and returns the body of a
// successful JSON response.
func (c *Client) get(ctx context.Context, documentID, suffix string, q url.Values) ([]byte, error) {
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + "/v4/spreadsheets/" + url.PathEscape(documentID) + suffix + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	case resp.StatusCode != http.StatusOK:
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedResponse)
	}
	return body, nil
}
