package wire

import (
	"encoding/json"
	"fmt"
)

// Argument is the sum type covering every element the arguments array can
// hold: a bare JSON primitive or one of the tagged objects in spec.md §6.2.
// Decoders MUST preserve unrecognized tags losslessly (spec.md §9) so that
// future producers remain compatible — that is what Unknown is for.
type Argument interface {
	argumentTag() string
}

const (
	tagDate           = "ActiveJob::Serializers::DateSerializer"
	tagDateTime       = "ActiveJob::Serializers::DateTimeSerializer"
	tagTime           = "ActiveJob::Serializers::TimeSerializer"
	tagTimeWithZone   = "ActiveJob::Serializers::TimeWithZoneSerializer"
	tagSymbol         = "ActiveJob::Serializers::SymbolSerializer"
	tagBigDecimal     = "ActiveJob::Serializers::BigDecimalSerializer"
	tagDuration       = "ActiveJob::Serializers::DurationSerializer"
	tagRange          = "ActiveJob::Serializers::RangeSerializer"
	tagModule         = "ActiveJob::Serializers::ModuleSerializer"
	globalIDKey       = "_aj_globalid"
	keywordMarkerKey1 = "_aj_ruby2_keywords"
	keywordMarkerKey2 = "_aj_symbol_keys"
)

// Primitive wraps a bare JSON scalar: string, number, bool, or null.
type Primitive struct{ Value any }

func (Primitive) argumentTag() string { return "" }

// Instant covers DateSerializer, DateTimeSerializer, TimeSerializer and
// TimeWithZoneSerializer — all carry a string value and differ only in the
// serializer name the other implementation used to produce them, which is
// preserved so re-encoding round-trips byte-for-byte in meaning.
type Instant struct {
	Serializer string // one of tagDate / tagDateTime / tagTime / tagTimeWithZone
	Value      string
}

func (i Instant) argumentTag() string { return i.Serializer }

// Symbol is a named constant (Ruby symbol / Elixir atom equivalent).
type Symbol struct{ Name string }

func (Symbol) argumentTag() string { return tagSymbol }

// BigDecimal preserves an arbitrary-precision decimal as its original
// string representation — round-tripping through float64 would lose
// precision the other language's BigDecimal relies on.
type BigDecimal struct{ Value string }

func (BigDecimal) argumentTag() string { return tagBigDecimal }

// Duration carries both the serialized total seconds and the parts array
// the wire format keeps alongside it (e.g. {days, hours, minutes, seconds}).
type Duration struct {
	Seconds float64
	Parts   json.RawMessage
}

func (Duration) argumentTag() string { return tagDuration }

// Range models a Ruby-style Range/Elixir-style Range argument.
type Range struct {
	Begin      any
	End        any
	ExcludeEnd bool
}

func (Range) argumentTag() string { return tagRange }

// Module references a class/module by name, not an instance.
type Module struct{ Name string }

func (Module) argumentTag() string { return tagModule }

// GlobalID is an opaque cross-system reference of the form
// gid://app/Model/id, preserved as its decomposed parts plus the original
// string so it can be handed back unchanged to another process.
type GlobalID struct {
	App   string
	Model string
	ID    string
	GID   string
}

func (GlobalID) argumentTag() string { return globalIDKey }

// Keyword is a plain object whose listed keys must be treated as named
// parameters rather than string-keyed map entries — the marker field name
// itself (ruby2_keywords vs. symbol_keys) is preserved so a decoder in
// another language can reconstruct the same distinction on re-encode.
type Keyword struct {
	MarkerKey string
	Keys      []string
	Fields    map[string]any
}

func (Keyword) argumentTag() string { return keywordMarkerKey1 }

// Unknown preserves a tagged object whose _aj_serialized tag this decoder
// does not recognize, keeping the raw bytes so it survives an encode/decode
// round trip unchanged (spec.md §9: "a default branch that preserves
// unknown tags").
type Unknown struct {
	Tag string
	Raw json.RawMessage
}

func (u Unknown) argumentTag() string { return u.Tag }

func DecodeArgument(raw json.RawMessage) (Argument, error) {
	trimmed := trimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty argument")
	}
	if trimmed[0] != '{' {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal primitive: %w", err)
		}
		return Primitive{Value: v}, nil
	}

	var peek map[string]json.RawMessage
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("unmarshal tagged object: %w", err)
	}

	if gidRaw, ok := peek[globalIDKey]; ok {
		var gid string
		if err := json.Unmarshal(gidRaw, &gid); err != nil {
			return nil, fmt.Errorf("unmarshal globalid: %w", err)
		}
		app, model, id, err := parseGlobalID(gid)
		if err != nil {
			return nil, err
		}
		return GlobalID{App: app, Model: model, ID: id, GID: gid}, nil
	}

	if tagRaw, ok := peek["_aj_serialized"]; ok {
		var tag string
		if err := json.Unmarshal(tagRaw, &tag); err != nil {
			return nil, fmt.Errorf("unmarshal tag: %w", err)
		}
		return decodeTagged(tag, peek, raw)
	}

	for _, marker := range []string{keywordMarkerKey1, keywordMarkerKey2} {
		if keysRaw, ok := peek[marker]; ok {
			var keys []string
			if err := json.Unmarshal(keysRaw, &keys); err != nil {
				return nil, fmt.Errorf("unmarshal keyword keys: %w", err)
			}
			fields := make(map[string]any, len(peek))
			if err := json.Unmarshal(raw, &fields); err != nil {
				return nil, fmt.Errorf("unmarshal keyword fields: %w", err)
			}
			delete(fields, marker)
			return Keyword{MarkerKey: marker, Keys: keys, Fields: fields}, nil
		}
	}

	// Plain map with no recognized marker — treat it as a primitive map.
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("unmarshal map: %w", err)
	}
	return Primitive{Value: v}, nil
}

func decodeTagged(tag string, fields map[string]json.RawMessage, raw json.RawMessage) (Argument, error) {
	switch tag {
	case tagDate, tagDateTime, tagTime, tagTimeWithZone:
		var value string
		if err := json.Unmarshal(fields["value"], &value); err != nil {
			return nil, fmt.Errorf("unmarshal instant value: %w", err)
		}
		return Instant{Serializer: tag, Value: value}, nil
	case tagSymbol:
		var value string
		if err := json.Unmarshal(fields["value"], &value); err != nil {
			return nil, fmt.Errorf("unmarshal symbol value: %w", err)
		}
		return Symbol{Name: value}, nil
	case tagBigDecimal:
		var value string
		if err := json.Unmarshal(fields["value"], &value); err != nil {
			return nil, fmt.Errorf("unmarshal decimal value: %w", err)
		}
		return BigDecimal{Value: value}, nil
	case tagDuration:
		var seconds float64
		if err := json.Unmarshal(fields["value"], &seconds); err != nil {
			return nil, fmt.Errorf("unmarshal duration value: %w", err)
		}
		return Duration{Seconds: seconds, Parts: fields["parts"]}, nil
	case tagRange:
		var begin, end any
		excludeEnd := false
		if b, ok := fields["begin"]; ok {
			_ = json.Unmarshal(b, &begin)
		}
		if e, ok := fields["end"]; ok {
			_ = json.Unmarshal(e, &end)
		}
		if ex, ok := fields["exclude_end"]; ok {
			_ = json.Unmarshal(ex, &excludeEnd)
		}
		return Range{Begin: begin, End: end, ExcludeEnd: excludeEnd}, nil
	case tagModule:
		var value string
		if err := json.Unmarshal(fields["value"], &value); err != nil {
			return nil, fmt.Errorf("unmarshal module value: %w", err)
		}
		return Module{Name: value}, nil
	default:
		return Unknown{Tag: tag, Raw: raw}, nil
	}
}

func EncodeArgument(a Argument) (json.RawMessage, error) {
	switch v := a.(type) {
	case Primitive:
		return json.Marshal(v.Value)
	case Instant:
		return json.Marshal(map[string]string{"_aj_serialized": v.Serializer, "value": v.Value})
	case Symbol:
		return json.Marshal(map[string]string{"_aj_serialized": tagSymbol, "value": v.Name})
	case BigDecimal:
		return json.Marshal(map[string]string{"_aj_serialized": tagBigDecimal, "value": v.Value})
	case Duration:
		obj := map[string]any{"_aj_serialized": tagDuration, "value": v.Seconds}
		if len(v.Parts) > 0 {
			obj["parts"] = v.Parts
		}
		return json.Marshal(obj)
	case Range:
		return json.Marshal(map[string]any{
			"_aj_serialized": tagRange,
			"begin":          v.Begin,
			"end":            v.End,
			"exclude_end":    v.ExcludeEnd,
		})
	case Module:
		return json.Marshal(map[string]string{"_aj_serialized": tagModule, "value": v.Name})
	case GlobalID:
		return json.Marshal(map[string]string{globalIDKey: v.GID})
	case Keyword:
		obj := make(map[string]any, len(v.Fields)+1)
		for k, val := range v.Fields {
			obj[k] = val
		}
		obj[v.MarkerKey] = v.Keys
		return json.Marshal(obj)
	case Unknown:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("unsupported argument type %T", a)
	}
}

func parseGlobalID(gid string) (app, model, id string, err error) {
	const prefix = "gid://"
	if len(gid) <= len(prefix) || gid[:len(prefix)] != prefix {
		return "", "", "", fmt.Errorf("malformed globalid: %q", gid)
	}
	rest := gid[len(prefix):]
	parts := splitN(rest, '/', 3)
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("malformed globalid: %q", gid)
	}
	return parts[0], parts[1], parts[2], nil
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func trimSpace(b []byte) []byte {
	i, j := 0, len(b)
	for i < j && isWhitespace(b[i]) {
		i++
	}
	for j > i && isWhitespace(b[j-1]) {
		j--
	}
	return b[i:j]
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
