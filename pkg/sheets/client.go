package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client writes cell values through the Sheets v4 API
type Client struct {
	service   *sheets.Service
	inputMode string
}

type Config struct {
	CredentialsPath string
	CredentialsJSON []byte

	// ValueInputOption is RAW (default) or USER_ENTERED
	ValueInputOption string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}

	switch {
	case cfg.CredentialsPath != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	case len(cfg.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	default:
		return nil, fmt.Errorf("sheets: credentials path or JSON is required")
	}

	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}

	mode := cfg.ValueInputOption
	if mode == "" {
		mode = "RAW"
	}

	return &Client{
		service:   service,
		inputMode: mode,
	}, nil
}

// AppendValues inserts rows after the last row of the table found in range_
func (c *Client) AppendValues(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	if c.service == nil {
		return fmt.Errorf("sheets: service is nil")
	}

	_, err := c.service.Spreadsheets.Values.Append(spreadsheetID, range_, &sheets.ValueRange{Values: values}).
		ValueInputOption(c.inputMode).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: append %s: %w", range_, err)
	}
	return nil
}

// UpdateValues overwrites cells starting at range_
func (c *Client) UpdateValues(ctx context.Context, spreadsheetID, range_ string, values [][]interface{}) error {
	if c.service == nil {
		return fmt.Errorf("sheets: service is nil")
	}

	_, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, &sheets.ValueRange{Values: values}).
		ValueInputOption(c.inputMode).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", range_, err)
	}
	return nil
}

func (c *Client) ClearValues(ctx context.Context, spreadsheetID, range_ string) error {
	if c.service == nil {
		return fmt.Errorf("sheets: service is nil")
	}

	_, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, range_, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheets: clear %s: %w", range_, err)
	}
	return nil
}
