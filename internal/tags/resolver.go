package tags

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"photoTagger/internal/geo"
)

// ErrInvalidMetadata is returned when the comprehensive metadata blob is not
// a JSON object.
var ErrInvalidMetadata = errors.New("invalid comprehensive metadata")

// Category names used by the metadata viewer payload.
const (
	envelopeKey   = "Comprehensive Metadata (ExifTool)"
	otherCategory = "Other ExifTool Tags"
)

// Categories that describe the image itself and are never written back.
var descriptiveCategories = map[string]bool{
	"Image Information":       true,
	"Image Information (PIL)": true,
}

// Form field names with dedicated handling.
const (
	FieldLatitude   = "GPSLatitude"
	FieldLongitude  = "GPSLongitude"
	FieldDateTime   = "datetime"
	FieldKeywords   = "Keywords"
	FieldPreset     = "preset"
	FieldUseRandom  = "use_random_coordinates"
	FieldAddress    = "address"
	defaultMapDatum = "WGS-84"
)

// Sampler picks a coordinate inside a region.
type Sampler interface {
	Sample(r geo.Region) geo.Point
}

// Input is everything the resolver needs for one file.
type Input struct {
	// Form holds the per-batch form fields keyed by friendly name.
	Form map[string]any
	// Comprehensive is the optional metadata blob harvested by the viewer.
	Comprehensive json.RawMessage
	// UseRandomLocation requests a random coordinate inside Region.
	UseRandomLocation bool
	Region            *geo.Region
	// Coordinates overrides every other coordinate source for this file.
	Coordinates *geo.Point
}

// Resolver builds tag sets from form fields and harvested metadata.
type Resolver struct {
	sampler  Sampler
	denylist []string
	log      logrus.FieldLogger
}

// NewResolver returns a Resolver. A nil denylist selects DefaultDenylist.
func NewResolver(sampler Sampler, denylist []string, log logrus.FieldLogger) *Resolver {
	if denylist == nil {
		denylist = DefaultDenylist
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{sampler: sampler, denylist: denylist, log: log}
}

// Resolve builds the tag set for one file. Later sources win on the same
// tag: the "Other ExifTool Tags" bucket, then the remaining viewer
// categories, then the form. Denied and empty tags are removed before
// returning. Only a malformed comprehensive blob is an error; every other
// bad field is logged and skipped.
func (r *Resolver) Resolve(in Input) (*Set, error) {
	set := NewSet()

	if err := r.applyComprehensive(set, in.Comprehensive); err != nil {
		return nil, err
	}
	r.applyForm(set, in)

	set.Prune(r.denylist)
	return set, nil
}

func (r *Resolver) applyComprehensive(set *Set, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var top map[string]any
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	categories := top
	if inner, ok := top[envelopeKey].(map[string]any); ok {
		categories = inner
	}

	if other, ok := categories[otherCategory].(map[string]any); ok {
		for _, group := range sortedKeys(other) {
			switch tags := other[group].(type) {
			case map[string]any:
				for _, name := range sortedKeys(tags) {
					r.put(set, Key{Namespace: group, Field: name}, tags[name])
				}
			default:
				r.put(set, Key{Field: group}, tags)
			}
		}
	}

	for _, category := range sortedKeys(categories) {
		if category == otherCategory || category == envelopeKey || descriptiveCategories[category] {
			continue
		}
		fields, ok := categories[category].(map[string]any)
		if !ok {
			continue
		}
		for _, name := range sortedKeys(fields) {
			targets, ok := lookup(name)
			if !ok {
				r.log.WithFields(logrus.Fields{"category": category, "field": name}).
					Debug("metadata field not mapped for writing")
				continue
			}
			r.putAll(set, targets, fields[name])
		}
	}
	return nil
}

// lookup maps a friendly name through friendlyTable, or takes a name that
// already carries a namespace verbatim.
func lookup(name string) ([]Key, bool) {
	if ids, ok := friendlyTable[name]; ok {
		return keys(ids), true
	}
	if k, ok := ParseKey(name); ok && k.Namespace != "" && k.Field != "" {
		return []Key{k}, true
	}
	return nil, false
}

func (r *Resolver) applyForm(set *Set, in Input) {
	form := in.Form

	special := map[string]bool{
		FieldLatitude: true, FieldLongitude: true, FieldDateTime: true,
		FieldKeywords: true, FieldPreset: true, FieldUseRandom: true, FieldAddress: true,
	}
	for name := range formFanout {
		special[name] = true
	}

	for _, name := range sortedKeys(form) {
		if special[name] || isEmptyRaw(form[name]) {
			continue
		}
		targets, ok := lookup(name)
		if !ok {
			r.log.WithField("field", name).Debug("form field not mapped for writing")
			continue
		}
		r.putAll(set, targets, form[name])
	}

	for _, name := range sortedKeys(formFanout) {
		if v, ok := form[name]; ok && !isEmptyRaw(v) {
			r.putAll(set, keys(formFanout[name]), v)
		}
	}

	if v, ok := form[FieldKeywords]; ok && !isEmptyRaw(v) {
		kw := splitKeywords(v)
		set.PutAll([]Key{IPTCKeywords, XMPSubject}, List(kw...))
	}

	if v, ok := form[FieldDateTime]; ok && !isEmptyRaw(v) {
		r.applyDateTime(set, v)
	}

	explicit := r.applyCoordinates(set, in)

	if in.UseRandomLocation && in.Region != nil {
		region := *in.Region
		if !explicit && r.sampler != nil {
			p := r.sampler.Sample(region)
			putCoordinates(set, p)
			set.Put(GPSMapDatum, Scalar(defaultMapDatum))
			r.log.WithFields(logrus.Fields{"lat": p.Lat, "lng": p.Lng, "preset": region.Name}).
				Debug("applied random coordinates from preset")
		}
		set.PutAll(keys(presetCountryTags), Scalar(region.Country))
		set.PutAll(keys(presetStateTags), Scalar(region.StateProvince))
		set.PutAll(keys(presetCityTags), Scalar(region.Name))
		set.PutAll(keys(presetSublocationTags), Scalar(region.Sublocation))
	}

	if v, ok := form[FieldAddress]; ok && !isEmptyRaw(v) {
		r.put(set, ContactAddress, v)
	}
}

// applyCoordinates writes explicit coordinates and reports whether a full
// latitude/longitude pair was written.
func (r *Resolver) applyCoordinates(set *Set, in Input) bool {
	if in.Coordinates != nil {
		putCoordinates(set, *in.Coordinates)
		return true
	}
	var haveLat, haveLng bool
	if v, ok := in.Form[FieldLatitude]; ok && !isEmptyRaw(v) {
		if lat, err := parseFloat(v); err == nil {
			set.Put(GPSLatitude, Scalar(formatFloat(lat)))
			set.Put(GPSLatitudeRef, Scalar(latRef(lat)))
			haveLat = true
		} else {
			r.log.WithField("value", v).Warn("invalid GPSLatitude value from form")
		}
	}
	if v, ok := in.Form[FieldLongitude]; ok && !isEmptyRaw(v) {
		if lng, err := parseFloat(v); err == nil {
			set.Put(GPSLongitude, Scalar(formatFloat(lng)))
			set.Put(GPSLongitudeRef, Scalar(lngRef(lng)))
			haveLng = true
		} else {
			r.log.WithField("value", v).Warn("invalid GPSLongitude value from form")
		}
	}
	return haveLat && haveLng
}

func putCoordinates(set *Set, p geo.Point) {
	set.Put(GPSLatitude, Scalar(formatFloat(p.Lat)))
	set.Put(GPSLatitudeRef, Scalar(latRef(p.Lat)))
	set.Put(GPSLongitude, Scalar(formatFloat(p.Lng)))
	set.Put(GPSLongitudeRef, Scalar(lngRef(p.Lng)))
}

func latRef(lat float64) string {
	if lat >= 0 {
		return "N"
	}
	return "S"
}

func lngRef(lng float64) string {
	if lng >= 0 {
		return "E"
	}
	return "W"
}

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocalDateTime parses an ISO-8601 local date-time as sent by a
// datetime-local input.
func ParseLocalDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date-time %q", s)
}

func (r *Resolver) applyDateTime(set *Set, raw any) {
	s, ok := raw.(string)
	if !ok {
		r.log.WithField("value", raw).Warn("datetime form field is not a string")
		return
	}
	dt, err := ParseLocalDateTime(s)
	if err != nil {
		r.log.WithError(err).Warn("invalid datetime format from form")
		return
	}
	exifStamp := dt.Format("2006:01:02 15:04:05")
	isoStamp := dt.Format("2006-01-02T15:04:05")

	set.Put(GPSDateStamp, Scalar(dt.Format("2006:01:02")))
	set.Put(GPSTimeStamp, Scalar(dt.Format("15:04:05")))
	set.Put(XMPGPSDateTime, Scalar(isoStamp+"Z"))
	set.PutAll([]Key{DateTimeOrig, ExifCreateDate, ExifModifyDate}, Scalar(exifStamp))
	set.PutAll([]Key{XMPCreateDate, XMPModifyDate}, Scalar(isoStamp))
}

// splitKeywords accepts a JSON list or a comma-separated string.
func splitKeywords(raw any) []string {
	var parts []string
	switch t := raw.(type) {
	case []any:
		for _, it := range t {
			if s, ok := scalarString(it); ok {
				parts = append(parts, s)
			}
		}
	case []string:
		parts = t
	case string:
		parts = strings.Split(t, ",")
	default:
		if s, ok := scalarString(t); ok {
			parts = []string{s}
		}
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (r *Resolver) put(set *Set, k Key, raw any) {
	r.putAll(set, []Key{k}, raw)
}

func (r *Resolver) putAll(set *Set, ks []Key, raw any) {
	v, ok := valueOf(raw)
	if !ok {
		if raw != nil {
			r.log.WithField("tags", ks).Debug("skipping value that cannot be written")
		}
		return
	}
	set.PutAll(ks, v)
}

func parseFloat(raw any) (float64, error) {
	var f float64
	switch t := raw.(type) {
	case float64:
		f = t
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, err
		}
		f = v
	default:
		return 0, fmt.Errorf("unsupported coordinate type %T", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("coordinate %v is not finite", f)
	}
	return f, nil
}

func isEmptyRaw(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Options extracts the random-location flag and the region preset from the
// form. A malformed preset yields a nil region and an error; the flag is
// still returned.
func Options(form map[string]any) (useRandom bool, region *geo.Region, err error) {
	switch t := form[FieldUseRandom].(type) {
	case bool:
		useRandom = t
	case string:
		useRandom, _ = strconv.ParseBool(t)
	}

	raw, ok := form[FieldPreset]
	if !ok || isEmptyRaw(raw) {
		return useRandom, nil, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return useRandom, nil, fmt.Errorf("encode preset: %w", err)
	}
	var r geo.Region
	if err := json.Unmarshal(b, &r); err != nil {
		return useRandom, nil, fmt.Errorf("decode preset: %w", err)
	}
	return useRandom, &r, nil
}
