// Package tdengine fetches raw thermal payloads from a TDengine time-series database over its REST API.
package tdengine

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/thermal"
	"github.com/cyclopcam/www"
	"github.com/pkg/errors"
)

var ErrNoRows = errors.New("No frame found")
var ErrInvalidMAC = errors.New("Invalid sensor MAC address")

const TimeLayout = "2006-01-02 15:04:05.000"

type Config struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Database       string `json:"database"`
	User           string `json:"user"`
	Password       string `json:"password"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6041
	}
	if c.Database == "" {
		c.Database = "thermal_sensors_pilot"
	}
	if c.User == "" {
		c.User = "root"
	}
	if c.Password == "" {
		c.Password = "taosdata"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 30
	}
}

// Response is the JSON body returned by /rest/sql
type Response struct {
	Code       int     `json:"code"`
	Desc       string  `json:"desc"`
	ColumnMeta [][]any `json:"column_meta"`
	Data       [][]any `json:"data"`
	Rows       int     `json:"rows"`
}

type Client struct {
	log     logs.Log
	cfg     Config
	baseURL string
}

func NewClient(log logs.Log, cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		log:     log,
		cfg:     cfg,
		baseURL: fmt.Sprintf("http://%v:%v", cfg.Host, cfg.Port),
	}
}

// Exec runs one SQL statement against the configured database
func (c *Client) Exec(ctx context.Context, sql string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/rest/sql/"+c.cfg.Database, strings.NewReader(sql))
	if err != nil {
		return nil, errors.Wrap(err, "creating TDengine request")
	}
	req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	req.Header.Set("Content-Type", "text/plain")
	resp := &Response{}
	if err := www.FetchJSON(req, resp); err != nil {
		return nil, errors.Wrap(err, "TDengine query failed")
	}
	if resp.Code != 0 {
		return nil, errors.Errorf("TDengine error %v: %v", resp.Code, resp.Desc)
	}
	return resp, nil
}

// QueryFrame returns the earliest frame of the sensor within toleranceMS of timeMS
func (c *Client) QueryFrame(ctx context.Context, mac string, timeMS, toleranceMS int64) (thermal.Payload, error) {
	table, err := TableName(mac)
	if err != nil {
		return thermal.Payload{}, err
	}
	sql := fmt.Sprintf("SELECT ts, frame_data, width, height FROM %v WHERE ts >= '%v' AND ts <= '%v' ORDER BY ts ASC LIMIT 1",
		table, FormatTime(timeMS-toleranceMS), FormatTime(timeMS+toleranceMS))
	rows, err := c.query(ctx, sql)
	if err != nil {
		return thermal.Payload{}, err
	}
	if len(rows) == 0 {
		return thermal.Payload{}, ErrNoRows
	}
	return rows[0], nil
}

// QueryRange returns all frames of the sensor in [startMS, endMS], in ascending time order
func (c *Client) QueryRange(ctx context.Context, mac string, startMS, endMS int64) ([]thermal.Payload, error) {
	table, err := TableName(mac)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf("SELECT ts, frame_data, width, height FROM %v WHERE ts >= '%v' AND ts <= '%v' ORDER BY ts ASC",
		table, FormatTime(startMS), FormatTime(endMS))
	rows, err := c.query(ctx, sql)
	if err != nil {
		return nil, err
	}
	c.log.Infof("Fetched %v frames of %v between %v and %v", len(rows), mac, FormatTime(startMS), FormatTime(endMS))
	return rows, nil
}

// QueryLatest returns the most recent frame of the sensor
func (c *Client) QueryLatest(ctx context.Context, mac string) (thermal.Payload, error) {
	table, err := TableName(mac)
	if err != nil {
		return thermal.Payload{}, err
	}
	rows, err := c.query(ctx, fmt.Sprintf("SELECT ts, frame_data, width, height FROM %v ORDER BY ts DESC LIMIT 1", table))
	if err != nil {
		return thermal.Payload{}, err
	}
	if len(rows) == 0 {
		return thermal.Payload{}, ErrNoRows
	}
	return rows[0], nil
}

func (c *Client) query(ctx context.Context, sql string) ([]thermal.Payload, error) {
	resp, err := c.Exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	rows := make([]thermal.Payload, 0, len(resp.Data))
	for i, row := range resp.Data {
		p, err := parseRow(row)
		if err != nil {
			return nil, errors.Wrapf(err, "row %v", i)
		}
		rows = append(rows, p)
	}
	return rows, nil
}

func parseRow(row []any) (thermal.Payload, error) {
	if len(row) < 2 {
		return thermal.Payload{}, errors.Errorf("Expected at least 2 columns, but got %v", len(row))
	}
	ts, ok := row[0].(string)
	if !ok {
		return thermal.Payload{}, errors.Errorf("Timestamp is %T, not a string", row[0])
	}
	timeMS, err := ParseTime(ts)
	if err != nil {
		return thermal.Payload{}, err
	}
	data, _ := row[1].(string)
	p := thermal.Payload{
		TimeMS: timeMS,
		Data:   data,
	}
	if len(row) >= 4 {
		p.Width = intColumn(row[2])
		p.Height = intColumn(row[3])
	}
	return p, nil
}

// JSON numbers decode as float64. Null becomes zero, which means "default shape".
func intColumn(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}

var macRegex = regexp.MustCompile(`^[0-9A-Fa-f]{2}([:_][0-9A-Fa-f]{2}){5}$`)

// TableName returns the table that holds the frames of a sensor
func TableName(mac string) (string, error) {
	if !macRegex.MatchString(mac) {
		return "", errors.Wrapf(ErrInvalidMAC, "'%v'", mac)
	}
	return "sensor_" + strings.ReplaceAll(mac, ":", "_"), nil
}

// FormatTime renders a millisecond epoch time the way TDengine expects it in SQL (UTC)
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeLayout)
}

// ParseTime accepts TDengine timestamps with either a space or a 'T' between date and time.
// Anything after the milliseconds (such as a zone suffix) is ignored, and the time is taken as UTC.
func ParseTime(s string) (int64, error) {
	if len(s) > len(TimeLayout) {
		s = s[:len(TimeLayout)]
	}
	s = strings.Replace(s, "T", " ", 1)
	layout := TimeLayout
	if len(s) < len(TimeLayout) {
		layout = "2006-01-02 15:04:05"
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid timestamp '%v'", s)
	}
	return t.UnixMilli(), nil
}
