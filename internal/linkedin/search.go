package linkedin

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

const (
	BaseURL    = "https://www.linkedin.com"
	SearchPath = "/search/results/people/"
)

// Network degrees accepted by the people search.
const (
	NetworkFirst  = "F"
	NetworkSecond = "S"
	NetworkThird  = "O"
)

type SearchParams struct {
	// liparam is a custom tag for reflect. See buildParams.
	Keywords string   `liparam:"keywords"`
	Network  []string `liparam:"network"`
	Origin   string   `liparam:"origin"`
	Page     int      `liparam:"page"`
}

// BuildQuery joins search terms with OR and appends the location constraint.
func BuildQuery(terms []string, location string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		quoted = append(quoted, strconv.Quote(term))
	}

	query := "(" + strings.Join(quoted, " OR ") + ")"
	if location = strings.TrimSpace(location); location != "" {
		query += " AND " + strconv.Quote(location)
	}
	return query
}

// SearchURL renders the people search URL for the given params.
func SearchURL(base string, params *SearchParams) string {
	if base == "" {
		base = BaseURL
	}
	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), SearchPath, buildParams(params).Encode())
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	value := reflect.ValueOf(params).Elem()

	for _, field := range reflect.VisibleFields(value.Type()) {
		key := field.Tag.Get("liparam")
		if key == "" {
			continue
		}

		fv := value.FieldByIndex(field.Index)
		switch fv.Kind() {
		case reflect.Slice:
			switch v := fv.Interface().(type) {
			case []int:
				for _, item := range v {
					q.Add(key, strconv.Itoa(item))
				}
			case []string:
				// LinkedIn expects list filters as a JSON-like array literal.
				if len(v) > 0 {
					q.Set(key, `["`+strings.Join(v, `","`)+`"]`)
				}
			}
		default:
			s := fmt.Sprintf("%v", fv.Interface())
			if s != "" && s != "0" {
				q.Set(key, s)
			}
		}
	}

	return q
}
