package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cardspend/internal/services"
)

// parseAnalysisRequest reads year, month and sort from query or form
// values. month also accepts the YYYY-MM form, which sets the year too.
func parseAnalysisRequest(values url.Values) (services.Request, error) {
	var req services.Request

	year, err := parseIntParam(values, "year")
	if err != nil {
		return req, err
	}
	req.Year = year

	if raw := sanitizeInput(values.Get("month")); raw != "" {
		if y, m, ok := strings.Cut(raw, "-"); ok {
			yv, yerr := strconv.Atoi(y)
			mv, merr := strconv.Atoi(m)
			if yerr != nil || merr != nil || len(y) != 4 {
				return req, fmt.Errorf("invalid month %q: want a number or YYYY-MM", raw)
			}
			if req.Year != 0 && req.Year != yv {
				return req, fmt.Errorf("month %q contradicts year %d", raw, req.Year)
			}
			req.Year, req.Month = yv, mv
		} else {
			mv, merr := strconv.Atoi(raw)
			if merr != nil {
				return req, fmt.Errorf("invalid month %q: want a number or YYYY-MM", raw)
			}
			req.Month = mv
		}
	}

	req.Sort = strings.ToLower(sanitizeInput(values.Get("sort")))

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func parseIntParam(values url.Values, name string) (int, error) {
	raw := sanitizeInput(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: not a number", name, raw)
	}
	return v, nil
}
