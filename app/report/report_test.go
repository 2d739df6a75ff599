package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const londonJSON = `{
	"location": {
		"name": "London",
		"region": "City of London, Greater London",
		"country": "United Kingdom",
		"lat": 51.52,
		"lon": -0.11,
		"localtime": "2024-03-10 14:05"
	},
	"current": {
		"temp_c": 12.0,
		"temp_f": 53.6,
		"is_day": 1,
		"condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/116.png", "code": 1003},
		"wind_mph": 8.1,
		"wind_kph": 13.0,
		"wind_degree": 230
	}
}`

func londonSnapshot(t *testing.T) *Snapshot {
	t.Helper()

	snapshot, err := ParseSnapshot([]byte(londonJSON))
	require.NoError(t, err)
	return snapshot
}

func TestCatalogRegistrationOrder(t *testing.T) {
	c := DefaultCatalog()

	expected := map[Section]Mask{
		SectionLocation:    1,
		SectionLocalTime:   2,
		SectionLatLong:     4,
		SectionCondition:   8,
		SectionTemperature: 16,
		SectionWind:        32,
	}
	for name, bit := range expected {
		got, ok := c.Bit(name)
		require.True(t, ok, name)
		assert.Equal(t, bit, got, name)
	}

	assert.Equal(t, Mask(1), c.Register(SectionLocation, "other", nil), "register is idempotent")
	assert.Equal(t, "the location", c.FriendlyLabel(SectionLocation))
	assert.Len(t, c.Sections(), 6)
	assert.Equal(t, Mask(63), c.All())
}

func TestFriendlyLabelUnknown(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, "wind data", c.FriendlyLabel(SectionWind))
	assert.Equal(t, "<Error (section=humidity)>", c.FriendlyLabel("humidity"))
}

func TestDefaultVisibility(t *testing.T) {
	state := NewState(DefaultCatalog())

	assert.Equal(t, Mask(0b00011001), state.Mask())
	assert.Equal(t, []Section{SectionLocation, SectionCondition, SectionTemperature}, state.VisibleSections())
	assert.False(t, state.IsVisible(SectionLocalTime))
	assert.False(t, state.IsVisible(SectionWind))
}

func TestDefaultSectionsCannotBeChanged(t *testing.T) {
	defaults := DefaultSections()
	defaults[0] = SectionWind

	assert.Equal(t, []Section{SectionLocation, SectionCondition, SectionTemperature}, DefaultSections())
	assert.Equal(t, Mask(25), NewState(DefaultCatalog()).Mask())
}

func TestDefaultVisibilityIgnoresRegistrationOrder(t *testing.T) {
	c := NewCatalog()
	c.Register(SectionWind, "wind data", formatWind)
	c.Register(SectionTemperature, "temperature data", formatTemperature)
	c.Register(SectionCondition, "the condition", formatCondition)
	c.Register(SectionLocation, "the location", formatLocation)

	state := NewState(c)
	assert.ElementsMatch(t, []Section{SectionLocation, SectionCondition, SectionTemperature}, state.VisibleSections())
	assert.False(t, state.IsVisible(SectionWind))
}

func TestToggleInvolution(t *testing.T) {
	c := DefaultCatalog()

	for mask := Mask(0); mask <= c.All(); mask++ {
		for _, name := range append(c.Sections(), "unknown") {
			state := NewStateWithMask(c, mask)
			state.Toggle(name).Toggle(name)
			assert.Equal(t, mask, state.Mask(), "mask=%b section=%s", mask, name)
		}
	}
}

func TestToggleUnknownIsNoop(t *testing.T) {
	state := NewState(DefaultCatalog())

	returned := state.Toggle("pressure")
	assert.Same(t, state, returned)
	assert.Equal(t, Mask(25), state.Mask())
	assert.False(t, state.IsVisible("pressure"))

	state.ToggleBit(1 << 40)
	assert.Equal(t, Mask(25), state.Mask())
}

func TestAllSectionsOrdered(t *testing.T) {
	state := NewState(DefaultCatalog()).Toggle(SectionWind)

	assert.Equal(t, []SectionVisibility{
		{SectionLocation, true},
		{SectionLocalTime, false},
		{SectionLatLong, false},
		{SectionCondition, true},
		{SectionTemperature, true},
		{SectionWind, true},
	}, state.AllSections())
}

func TestLookup(t *testing.T) {
	snapshot := londonSnapshot(t)

	value, err := snapshot.Lookup("location.country")
	require.NoError(t, err)
	assert.Equal(t, "United Kingdom", value)

	_, err = snapshot.Lookup("location.postcode")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = snapshot.Lookup("location.country.code")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestParseSnapshotRejectsNonObject(t *testing.T) {
	_, err := ParseSnapshot([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrNotAnObject)

	_, err = ParseSnapshot([]byte(`{`))
	assert.Error(t, err)
}

func TestFormatters(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()

	tests := []struct {
		section  Section
		expected string
	}{
		{SectionLocation, "United Kingdom, City of London, Greater London"},
		{SectionLocalTime, "Local time:  2024-03-10 14:05 ☀️"},
		{SectionLatLong, "Latitude 51.52, Longitude -0.11"},
		{SectionCondition, "Condition is Partly cloudy"},
		{SectionTemperature, "Temperature 12.0°C (53.6°F)"},
		{SectionWind, "Wind speed is 8.1 miles/hour (13.0 km/h) in the Southwest direction"},
	}

	for _, tt := range tests {
		t.Run(string(tt.section), func(t *testing.T) {
			text, err := snapshot.Format(c, tt.section, PlainText)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestLocalTimeNight(t *testing.T) {
	snapshot := NewSnapshot(map[string]any{
		"location": map[string]any{"localtime": "2024-03-10 23:40"},
		"current":  map[string]any{"is_day": json.Number("0")},
	})

	text, err := snapshot.Format(DefaultCatalog(), SectionLocalTime, nil)
	require.NoError(t, err)
	assert.Equal(t, "Local time:  2024-03-10 23:40 🌑", text)
}

func TestMissingFieldPropagates(t *testing.T) {
	snapshot := NewSnapshot(map[string]any{
		"current": map[string]any{"temp_f": json.Number("53.6")},
	})

	text, err := snapshot.Format(DefaultCatalog(), SectionTemperature, PlainText)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.ErrorContains(t, err, "current.temp_c")
	assert.Empty(t, text)

	_, err = NewRenderer(DefaultCatalog(), nil).Render(snapshot, NewState(DefaultCatalog()))
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestWindDirection(t *testing.T) {
	tests := map[int]string{
		0:    "North",
		45:   "Northeast",
		90:   "East",
		135:  "Southeast",
		180:  "South",
		230:  "Southwest",
		270:  "West",
		315:  "Northwest",
		340:  "North",
		360:  "North",
		-45:  "Northwest",
		-90:  "West",
		1080: "North",
	}

	for degrees, expected := range tests {
		assert.Equal(t, expected, WindDirection(degrees), "degrees=%d", degrees)
	}
}

func TestRender(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()
	renderer := NewRenderer(c, nil)

	text, err := renderer.Render(snapshot, NewState(c))
	require.NoError(t, err)
	assert.Equal(t,
		"United Kingdom, City of London, Greater London\n"+
			"Condition is Partly cloudy\n"+
			"Temperature 12.0°C (53.6°F)\n",
		text)

	text, err = renderer.Render(snapshot, NewStateWithMask(c, 0))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRenderCompleteness(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()

	text, err := NewRenderer(c, nil).Render(snapshot, NewStateWithMask(c, c.All()))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	require.Len(t, lines, len(c.Sections()))

	for i, name := range c.Sections() {
		expected, err := snapshot.Format(c, name, PlainText)
		require.NoError(t, err)
		assert.Equal(t, expected, lines[i])
		assert.Equal(t, 1, strings.Count(text, expected))
	}
}

func TestRenderEscapesValues(t *testing.T) {
	snapshot := NewSnapshot(map[string]any{
		"location": map[string]any{"country": "A&B", "region": "<R>"},
	})
	c := DefaultCatalog()
	escape := func(s string) string {
		return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
	}

	text, err := NewRenderer(c, escape).Render(snapshot, NewStateWithMask(c, 1))
	require.NoError(t, err)
	assert.Equal(t, "A&amp;B, &lt;R&gt;\n", text)
}

func gridLabels(grid [][]Button) [][]string {
	result := make([][]string, len(grid))
	for i, row := range grid {
		for _, b := range row {
			result[i] = append(result[i], b.Label)
		}
	}
	return result
}

func TestToggleGridLayout(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()

	grid := NewRenderer(c, nil).ToggleGrid(snapshot, NewState(c))

	assert.Equal(t, [][]string{
		{"Show local time"},
		{"Show latitude and longitude", "Hide the condition"},
		{"Hide temperature data", "Show wind data"},
	}, gridLabels(grid))
}

func TestToggleGridNeverContainsLocation(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()
	renderer := NewRenderer(c, nil)
	locationBit, _ := c.Bit(SectionLocation)

	for mask := Mask(0); mask <= c.All(); mask++ {
		for _, row := range renderer.ToggleGrid(snapshot, NewStateWithMask(c, mask)) {
			assert.LessOrEqual(t, len(row), 2)
			for _, b := range row {
				assert.NotEqual(t, locationBit, b.Command.Bit())
				assert.NotContains(t, b.Label, "the location")
			}
		}
	}
}

func TestApplyCommand(t *testing.T) {
	snapshot := londonSnapshot(t)
	c := DefaultCatalog()
	state := NewState(c)

	cmd := NewToggleCommand(snapshot, state, SectionWind)
	gotSnapshot, gotState := cmd.Apply()
	assert.Same(t, snapshot, gotSnapshot)
	assert.Same(t, state, gotState)
	assert.True(t, state.IsVisible(SectionWind))

	cmd.Apply()
	assert.Equal(t, Mask(25), state.Mask())
}

func TestCommandRoundTrip(t *testing.T) {
	c := DefaultCatalog()
	renderer := NewRenderer(c, nil)

	for mask := Mask(0); mask <= c.All(); mask++ {
		for _, name := range c.Sections() {
			snapshot := londonSnapshot(t)
			original := NewToggleCommand(snapshot, NewStateWithMask(c, mask), name)

			token, err := original.Serialize()
			require.NoError(t, err)

			decoded, err := DecodeCommand(c, token)
			require.NoError(t, err)
			assert.Equal(t, original.Bit(), decoded.Bit())

			expected, err := renderer.Render(original.Apply())
			require.NoError(t, err)
			got, err := renderer.Render(decoded.Apply())
			require.NoError(t, err)

			assert.Equal(t, expected, got, "mask=%b section=%s", mask, name)
		}
	}
}

func TestDecodeCommandKeepsNumbersVerbatim(t *testing.T) {
	c := DefaultCatalog()
	cmd := NewToggleCommand(londonSnapshot(t), NewState(c), SectionWind)

	token, err := cmd.Serialize()
	require.NoError(t, err)
	assert.Contains(t, token, `"temp_c":12.0`)
	assert.Contains(t, token, `"state":25`)
	assert.Contains(t, token, `"mask":32`)
}

func TestDecodeCommandCorrupt(t *testing.T) {
	c := DefaultCatalog()

	tokens := []string{
		``,
		`not json`,
		`{"data": {}, "state": 25}`,
		`{"state": 25, "mask": 2}`,
		`{"data": null, "state": 25, "mask": 2}`,
		`{"data": [], "state": 25, "mask": 2}`,
		`{"data": {}, "mask": 2}`,
		`{"data": {}, "state": 25, "mask": 0}`,
		`{"data": {}, "state": 25, "mask": 6}`,
		`{"data": {}, "state": 25, "mask": 64}`,
		`{"data": {}, "state": 25, "mask": 1099511627776}`,
		`{"data": {}, "state": -1, "mask": 2}`,
		`{"data": {}, "state": 25, "mask": 2, "extra": true}`,
	}

	for _, token := range tokens {
		_, err := DecodeCommand(c, token)
		assert.ErrorIs(t, err, ErrCorruptToken, token)
	}
}
