package tags

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoTagger/internal/geo"
)

type fixedSampler struct {
	p     geo.Point
	calls int
}

func (f *fixedSampler) Sample(geo.Region) geo.Point {
	f.calls++
	return f.p
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestResolver(s Sampler) *Resolver {
	return NewResolver(s, nil, quietLogger())
}

func scalar(t *testing.T, set *Set, id string) string {
	t.Helper()
	v, ok := set.Get(MustKey(id))
	require.True(t, ok, "missing tag %s", id)
	require.False(t, v.IsList(), "tag %s is a list", id)
	return v.String()
}

func paris() *geo.Region {
	return &geo.Region{
		Name:          "Paris",
		Country:       "France",
		StateProvince: "Ile-de-France",
		Sublocation:   "Le Marais",
		Center:        geo.Point{Lat: 48.8566, Lng: 2.3522},
	}
}

func TestResolveFormOverridesComprehensive(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{
		Form:          map[string]any{"City": "B"},
		Comprehensive: json.RawMessage(`{"Location": {"City": "A"}}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "B", scalar(t, set, "IPTC:City"))
	assert.Equal(t, "B", scalar(t, set, "XMP-iptcCore:City"))
}

func TestResolvePresetOverridesLocation(t *testing.T) {
	s := &fixedSampler{p: geo.Point{Lat: 48.86, Lng: 2.35}}
	r := newTestResolver(s)
	set, err := r.Resolve(Input{
		Form:              map[string]any{"City": "Berlin"},
		Comprehensive:     json.RawMessage(`{"Comprehensive Metadata (ExifTool)": {"Location": {"City": "London"}}}`),
		UseRandomLocation: true,
		Region:            paris(),
	})
	require.NoError(t, err)

	for _, id := range presetCityTags {
		assert.Equal(t, "Paris", scalar(t, set, id), id)
	}
	for _, id := range presetCountryTags {
		assert.Equal(t, "France", scalar(t, set, id), id)
	}
	assert.Equal(t, "Le Marais", scalar(t, set, "IPTC:Sub-location"))
	assert.Equal(t, "48.86", scalar(t, set, "GPS:GPSLatitude"))
	assert.Equal(t, "N", scalar(t, set, "GPS:GPSLatitudeRef"))
	assert.Equal(t, "E", scalar(t, set, "GPS:GPSLongitudeRef"))
	assert.Equal(t, "WGS-84", scalar(t, set, "GPS:GPSMapDatum"))
	assert.Equal(t, 1, s.calls)
}

func TestResolvePresetIgnoredWithoutRandomFlag(t *testing.T) {
	s := &fixedSampler{}
	r := newTestResolver(s)
	set, err := r.Resolve(Input{Form: map[string]any{"City": "Berlin"}, Region: paris()})
	require.NoError(t, err)

	assert.Equal(t, "Berlin", scalar(t, set, "IPTC:City"))
	_, ok := set.Get(GPSLatitude)
	assert.False(t, ok)
	assert.Zero(t, s.calls)
}

func TestResolveExplicitCoordinatesWinOverRandom(t *testing.T) {
	s := &fixedSampler{p: geo.Point{Lat: 1, Lng: 1}}
	r := newTestResolver(s)

	t.Run("form coordinates", func(t *testing.T) {
		set, err := r.Resolve(Input{
			Form:              map[string]any{"GPSLatitude": "10.5", "GPSLongitude": -20.25},
			UseRandomLocation: true,
			Region:            paris(),
		})
		require.NoError(t, err)
		assert.Equal(t, "10.5", scalar(t, set, "GPS:GPSLatitude"))
		assert.Equal(t, "-20.25", scalar(t, set, "GPS:GPSLongitude"))
		assert.Equal(t, "W", scalar(t, set, "GPS:GPSLongitudeRef"))
		// Location fields still come from the preset.
		assert.Equal(t, "Paris", scalar(t, set, "IPTC:City"))
	})

	t.Run("per-item coordinates beat form coordinates", func(t *testing.T) {
		set, err := r.Resolve(Input{
			Form:        map[string]any{"GPSLatitude": "10.5", "GPSLongitude": "20"},
			Coordinates: &geo.Point{Lat: -1.5, Lng: 2.5},
		})
		require.NoError(t, err)
		assert.Equal(t, "-1.5", scalar(t, set, "GPS:GPSLatitude"))
		assert.Equal(t, "S", scalar(t, set, "GPS:GPSLatitudeRef"))
		assert.Equal(t, "2.5", scalar(t, set, "GPS:GPSLongitude"))
	})
	assert.Zero(t, s.calls)
}

func TestResolveHemisphereRef(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{Form: map[string]any{"GPSLatitude": "-33.87", "GPSLongitude": "151.21"}})
	require.NoError(t, err)

	assert.Equal(t, "-33.87", scalar(t, set, "GPS:GPSLatitude"))
	assert.Equal(t, "S", scalar(t, set, "GPS:GPSLatitudeRef"))
	assert.Equal(t, "151.21", scalar(t, set, "GPS:GPSLongitude"))
	assert.Equal(t, "E", scalar(t, set, "GPS:GPSLongitudeRef"))
}

func TestResolveInvalidCoordinateSkipsOnlyThatField(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{Form: map[string]any{
		"GPSLatitude":  "north-ish",
		"GPSLongitude": "12.5",
		"Caption":      "still here",
	}})
	require.NoError(t, err)

	_, ok := set.Get(GPSLatitude)
	assert.False(t, ok)
	_, ok = set.Get(GPSLatitudeRef)
	assert.False(t, ok)
	assert.Equal(t, "12.5", scalar(t, set, "GPS:GPSLongitude"))
	assert.Equal(t, "still here", scalar(t, set, "IPTC:Caption-Abstract"))
}

func TestResolveKeywords(t *testing.T) {
	r := newTestResolver(nil)
	tests := []struct {
		name string
		raw  any
		want []string
	}{
		{"comma separated", "beach, sunset , ocean", []string{"beach", "sunset", "ocean"}},
		{"list", []any{"a", " b ", ""}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := r.Resolve(Input{Form: map[string]any{"Keywords": tt.raw}})
			require.NoError(t, err)
			for _, k := range []Key{IPTCKeywords, XMPSubject} {
				v, ok := set.Get(k)
				require.True(t, ok)
				assert.True(t, v.IsList())
				assert.Equal(t, tt.want, v.Items())
			}
		})
	}

	t.Run("only separators is pruned", func(t *testing.T) {
		set, err := r.Resolve(Input{Form: map[string]any{"Keywords": " , ,"}})
		require.NoError(t, err)
		_, ok := set.Get(IPTCKeywords)
		assert.False(t, ok)
	})
}

func TestResolveDateTime(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{Form: map[string]any{"datetime": "2025-06-16T12:49"}})
	require.NoError(t, err)

	assert.Equal(t, "2025:06:16", scalar(t, set, "GPS:GPSDateStamp"))
	assert.Equal(t, "12:49:00", scalar(t, set, "GPS:GPSTimeStamp"))
	assert.Equal(t, "2025-06-16T12:49:00Z", scalar(t, set, "XMP:GPSDateTime"))
	for _, id := range []string{"EXIF:DateTimeOriginal", "EXIF:CreateDate", "EXIF:ModifyDate"} {
		assert.Equal(t, "2025:06:16 12:49:00", scalar(t, set, id))
	}
	assert.Equal(t, "2025-06-16T12:49:00", scalar(t, set, "XMP-xmp:CreateDate"))
	assert.Equal(t, "2025-06-16T12:49:00", scalar(t, set, "XMP-xmp:ModifyDate"))

	set, err = r.Resolve(Input{Form: map[string]any{"datetime": "yesterday"}})
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestParseLocalDateTime(t *testing.T) {
	for in, want := range map[string]time.Time{
		"2025-06-16T12:49":           time.Date(2025, 6, 16, 12, 49, 0, 0, time.UTC),
		"2025-06-16T12:49:30":        time.Date(2025, 6, 16, 12, 49, 30, 0, time.UTC),
		"2025-06-16T12:49:30.5":      time.Date(2025, 6, 16, 12, 49, 30, 5e8, time.UTC),
		"2025-06-16T12:49:30.123456": time.Date(2025, 6, 16, 12, 49, 30, 123456000, time.UTC),
		" 2025-06-16 12:49:30 ":      time.Date(2025, 6, 16, 12, 49, 30, 0, time.UTC),
		"2025-06-16":                 time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
	} {
		got, err := ParseLocalDateTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	r := newTestResolver(nil)
	set, err := r.Resolve(Input{Form: map[string]any{"datetime": "2025-06-16T12:49:30.5"}})
	require.NoError(t, err)
	assert.Equal(t, "2025:06:16 12:49:30", scalar(t, set, "EXIF:DateTimeOriginal"))
}

func TestResolveComprehensiveBuckets(t *testing.T) {
	r := newTestResolver(nil)
	blob := `{
		"Image Information (PIL)": {"Format": "JPEG"},
		"Other ExifTool Tags": {
			"IFD0": {"Make": "Canon", "Software": ""},
			"System": {"FileName": "x.jpg"},
			"Composite": {"GPSPosition": "1 2"},
			"XPKeywords": ["a", "b"]
		},
		"Artist/Source/Description": {
			"Caption": "harbour",
			"XMP-dc:Title": "Harbour at dawn",
			"Unknown Field": "dropped"
		}
	}`
	set, err := r.Resolve(Input{Comprehensive: json.RawMessage(blob)})
	require.NoError(t, err)

	assert.Equal(t, "Canon", scalar(t, set, "IFD0:Make"))
	assert.Equal(t, "harbour", scalar(t, set, "IPTC:Caption-Abstract"))
	assert.Equal(t, "harbour", scalar(t, set, "XMP-dc:Description"))
	assert.Equal(t, "Harbour at dawn", scalar(t, set, "XMP-dc:Title"))

	v, ok := set.Get(Key{Field: "XPKeywords"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, v.Items())

	for _, id := range []string{"IFD0:Software", "System:FileName", "Composite:GPSPosition", "Format"} {
		_, ok := set.Get(MustKey(id))
		assert.False(t, ok, id)
	}
	assert.Equal(t, 5, set.Len())
}

func TestResolveOtherBucketLosesToMappedCategories(t *testing.T) {
	r := newTestResolver(nil)
	blob := `{"Other ExifTool Tags": {"IPTC": {"City": "Raw"}}, "Location": {"City": "Mapped"}}`
	set, err := r.Resolve(Input{Comprehensive: json.RawMessage(blob)})
	require.NoError(t, err)
	assert.Equal(t, "Mapped", scalar(t, set, "IPTC:City"))
}

func TestResolveMalformedComprehensive(t *testing.T) {
	r := newTestResolver(nil)
	for _, blob := range []string{`{"Location": `, `[1, 2]`} {
		_, err := r.Resolve(Input{Comprehensive: json.RawMessage(blob)})
		assert.ErrorIs(t, err, ErrInvalidMetadata, blob)
	}

	set, err := r.Resolve(Input{Comprehensive: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestResolveNeverReturnsEmptyValues(t *testing.T) {
	r := newTestResolver(nil)
	blob := `{"Location": {"City": "", "Country": []}, "Other ExifTool Tags": {"IPTC": {"Credit": ""}}}`
	set, err := r.Resolve(Input{
		Form:              map[string]any{"Caption": "", "Keywords": []any{}, "Source": nil, "Headline": "ok"},
		Comprehensive:     json.RawMessage(blob),
		UseRandomLocation: true,
		Region:            &geo.Region{Name: "Nowhere"},
	})
	require.NoError(t, err)

	for _, k := range set.Keys() {
		v, _ := set.Get(k)
		assert.False(t, v.Empty(), k.String())
	}
	assert.Equal(t, "ok", scalar(t, set, "XMP-photoshop:Headline"))
}

func TestResolveFanoutAndVerbatimFormFields(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{Form: map[string]any{
		"Creator":                "Ada",
		"ContactURL":             "https://example.org",
		"XMP-dc:Title":           "Verbatim",
		"address":                "1 Main St",
		"use_random_coordinates": false,
		"nonsense":               "dropped",
	}})
	require.NoError(t, err)

	for _, id := range []string{"IFD0:Artist", "XMP-tiff:Artist", "XMP-dc:Creator"} {
		assert.Equal(t, "Ada", scalar(t, set, id))
	}
	assert.Equal(t, "https://example.org", scalar(t, set, "IPTC:ContactInfoWebURL"))
	assert.Equal(t, "Verbatim", scalar(t, set, "XMP-dc:Title"))
	assert.Equal(t, "1 Main St", scalar(t, set, "IPTC:ContactInfoAddress"))
	_, ok := set.Get(Key{Field: "nonsense"})
	assert.False(t, ok)
}

func TestResolveDropsFileSystemTagsInAnySpelling(t *testing.T) {
	r := newTestResolver(nil)
	set, err := r.Resolve(Input{
		Form: map[string]any{
			"system:FileName": "../../escape.jpg",
			"File:Directory":  "/tmp/elsewhere",
			"System:FileName": "blocked.jpg",
			"XMP-dc:Title":    "kept",
		},
		Comprehensive: json.RawMessage(`{"Other ExifTool Tags": {
			"FileName": "../moved.jpg",
			"IPTC": {"Credit": "kept too"},
			"System": {"HardLink": "/tmp/link.jpg"},
			"composite": {"GPSPosition": "1 2"}
		}}`),
	})
	require.NoError(t, err)

	for _, k := range set.Keys() {
		assert.False(t, denied(k.String(), DefaultDenylist), k.String())
	}
	for _, id := range []string{"system:FileName", "File:Directory", "System:FileName", "FileName", "System:HardLink", "composite:GPSPosition"} {
		_, ok := set.Get(MustKey(id))
		assert.False(t, ok, id)
	}
	assert.Equal(t, "kept", scalar(t, set, "XMP-dc:Title"))
	assert.Equal(t, "kept too", scalar(t, set, "IPTC:Credit"))
	assert.Equal(t, 2, set.Len())
}

func TestDenied(t *testing.T) {
	tests := []struct {
		tag  string
		want bool
	}{
		{"System:FileName", true},
		{"system:filename", true},
		{"File:FileName", true},
		{"FileName", true},
		{"XMP:XMP-dc:FileName", true},
		{"Directory", true},
		{"IPTC:TestName", true},
		{"FileName#", true},
		{"file:MIMEType", true},
		{"Composite:Megapixels", true},
		{"IPTC:ObjectName", false},
		{"XMP-dc:Title", false},
		{"IFD0:Make", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, denied(tt.tag, DefaultDenylist), tt.tag)
	}
}

func TestResolveCustomDenylist(t *testing.T) {
	r := NewResolver(nil, []string{"XMP-"}, quietLogger())
	set, err := r.Resolve(Input{Form: map[string]any{"City": "Oslo"}})
	require.NoError(t, err)

	assert.Equal(t, "Oslo", scalar(t, set, "IPTC:City"))
	_, ok := set.Get(MustKey("XMP-iptcCore:City"))
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	form := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"use_random_coordinates": true,
		"preset": {
			"name": "Paris", "country": "France", "state_province": "IDF",
			"center": {"lat": 48.85, "lng": 2.35},
			"boundaries": {
				"top_left": {"lat": 48.9, "lng": 2.3},
				"top_right": {"lat": 48.9, "lng": 2.4},
				"bottom_right": {"lat": 48.8, "lng": 2.4},
				"bottom_left": {"lat": 48.8, "lng": 2.3}
			}
		}
	}`), &form))

	useRandom, region, err := Options(form)
	require.NoError(t, err)
	assert.True(t, useRandom)
	require.NotNil(t, region)
	assert.Equal(t, "Paris", region.Name)
	assert.Equal(t, 48.9, region.Boundaries.TopLeft.Lat)

	useRandom, region, err = Options(map[string]any{"use_random_coordinates": "true", "preset": "paris"})
	assert.Error(t, err)
	assert.True(t, useRandom)
	assert.Nil(t, region)
}
