package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/YelzhanWeb/canteen/internal/domain"
)

const dateLayout = "2006-01-02"

// pageParams reads limit and offset. Absent values stay zero and the services apply their defaults.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if limit, err = intParam(q.Get("limit"), "limit"); err != nil {
		return 0, 0, err
	}
	if offset, err = intParam(q.Get("offset"), "offset"); err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Errorf(domain.CodeInvalidInput, "%s must be a non-negative integer", name)
	}
	return n, nil
}

func orderFilter(r *http.Request) (domain.OrderFilter, error) {
	var f domain.OrderFilter
	var err error
	if f.Limit, f.Offset, err = pageParams(r); err != nil {
		return f, err
	}

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, ok := domain.ParseStatus(raw)
		if !ok {
			return f, domain.Errorf(domain.CodeInvalidInput, "unknown order status %q", raw)
		}
		f.Status = &st
	}
	if raw := q.Get("date"); raw != "" {
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, domain.Errorf(domain.CodeInvalidInput, "date must be YYYY-MM-DD")
		}
		f.Day = &day
	}
	return f, nil
}

func paymentFilter(r *http.Request) (domain.PaymentFilter, error) {
	var f domain.PaymentFilter
	var err error
	if f.Limit, f.Offset, err = pageParams(r); err != nil {
		return f, err
	}

	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		st, ok := domain.ParsePaymentStatus(raw)
		if !ok {
			return f, domain.Errorf(domain.CodeInvalidInput, "unknown payment status %q", raw)
		}
		f.Status = &st
	}
	if raw := q.Get("method"); raw != "" {
		m, ok := domain.ParsePaymentMethod(raw)
		if !ok {
			return f, domain.Errorf(domain.CodeInvalidInput, "unknown payment method %q", raw)
		}
		f.Method = &m
	}
	return f, nil
}
