package weather

import (
	"context"
	"errors"
	"fmt"
	"weatherbot/app/client/weatherapi"
	"weatherbot/app/report"

	"github.com/samber/do"
)

const (
	malformedMessage   = "Something went wrong, the weather API returned malformed data."
	unreachableMessage = "Something went wrong, failed to fetch weather API. Please try again later."
)

type Fetcher interface {
	Current(ctx context.Context, query string) (*report.Snapshot, error)
}

type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// View is a rendered report with serialized toggle commands.
type View struct {
	Text    string     `json:"text"`
	Mask    uint64     `json:"mask"`
	Buttons [][]Button `json:"buttons"`
}

type Service struct {
	fetcher Fetcher
	catalog *report.Catalog
}

func New(di *do.Injector) (*Service, error) {
	return NewService(
		do.MustInvoke[*weatherapi.Client](di),
		do.MustInvoke[*report.Catalog](di),
	), nil
}

func NewService(fetcher Fetcher, catalog *report.Catalog) *Service {
	return &Service{
		fetcher: fetcher,
		catalog: catalog,
	}
}

func (s *Service) Catalog() *report.Catalog {
	return s.catalog
}

// Fetch returns the snapshot for city together with a default state.
// The snapshot is rendered once up front so that a malformed payload fails
// here instead of producing a blank report later.
func (s *Service) Fetch(ctx context.Context, city string) (*report.Snapshot, *report.State, error) {
	snapshot, err := s.fetcher.Current(ctx, city)
	if err != nil {
		return nil, nil, err
	}

	if _, err = report.NewRenderer(s.catalog, nil).Render(snapshot, report.NewStateWithMask(s.catalog, s.catalog.All())); err != nil {
		return nil, nil, err
	}

	return snapshot, report.NewState(s.catalog), nil
}

func (s *Service) View(renderer *report.Renderer, snapshot *report.Snapshot, state *report.State) (View, error) {
	text, err := renderer.Render(snapshot, state)
	if err != nil {
		return View{}, err
	}

	grid := renderer.ToggleGrid(snapshot, state)

	buttons := make([][]Button, 0, len(grid))
	for _, row := range grid {
		viewRow := make([]Button, 0, len(row))
		for _, b := range row {
			token, err := b.Command.Serialize()
			if err != nil {
				return View{}, fmt.Errorf("failed to serialize command: %w", err)
			}
			viewRow = append(viewRow, Button{Label: b.Label, Token: token})
		}
		buttons = append(buttons, viewRow)
	}

	return View{
		Text:    text,
		Mask:    uint64(state.Mask()),
		Buttons: buttons,
	}, nil
}

// Toggle decodes a token, applies it and renders the result.
func (s *Service) Toggle(renderer *report.Renderer, token string) (View, error) {
	command, err := report.DecodeCommand(s.catalog, token)
	if err != nil {
		return View{}, err
	}

	snapshot, state := command.Apply()

	return s.View(renderer, snapshot, state)
}

// FailureMessage turns a fetch or render error into the text shown to
// users.
func FailureMessage(err error) string {
	var fetchErr *weatherapi.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return fetchErr.Error()
	case errors.Is(err, report.ErrMissingField), errors.Is(err, report.ErrNotAnObject):
		return malformedMessage
	default:
		return unreachableMessage
	}
}
