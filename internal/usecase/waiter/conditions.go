package waiter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"resilient-ui/internal/application/port/output"
	"resilient-ui/internal/domain/entity"
)

// Prober runs single, non-waiting resolution passes.
type Prober interface {
	Probe(ctx context.Context, page output.PagePort, q entity.ElementQuery) (entity.ResolvedElement, bool, error)
	Count(ctx context.Context, page output.PagePort, q entity.ElementQuery) (int, error)
}

func Visible(r Prober, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitCondition {
	return entity.Condition(q.Label()+" visible", deadline, func(ctx context.Context) (bool, error) {
		_, ok, err := r.Probe(ctx, page, q)
		return ok, err
	})
}

func Hidden(r Prober, page output.PagePort, q entity.ElementQuery, deadline time.Duration) entity.WaitCondition {
	return entity.Condition(q.Label()+" hidden", deadline, func(ctx context.Context) (bool, error) {
		_, ok, err := r.Probe(ctx, page, q)
		if err != nil {
			return false, err
		}
		return !ok, nil
	})
}

// AttributeContains holds once the element's attribute, split on whitespace,
// contains token. It suits class lists such as "modal fade show".
func AttributeContains(r Prober, page output.PagePort, q entity.ElementQuery, attr, token string, deadline time.Duration) entity.WaitCondition {
	name := fmt.Sprintf("%s [%s] contains %q", q.Label(), attr, token)
	return entity.Condition(name, deadline, func(ctx context.Context) (bool, error) {
		el, ok, err := r.Probe(ctx, page, q)
		if !ok {
			return false, err
		}
		v, present, err := page.GetAttribute(ctx, el.Handle, attr)
		if err != nil || !present {
			return false, err
		}
		for _, f := range strings.Fields(v) {
			if f == token {
				return true, nil
			}
		}
		return false, nil
	})
}

func TextContains(r Prober, page output.PagePort, q entity.ElementQuery, substr string, deadline time.Duration) entity.WaitCondition {
	name := fmt.Sprintf("%s text contains %q", q.Label(), substr)
	return entity.Condition(name, deadline, func(ctx context.Context) (bool, error) {
		el, ok, err := r.Probe(ctx, page, q)
		if !ok {
			return false, err
		}
		text, err := page.GetText(ctx, el.Handle)
		if err != nil {
			return false, err
		}
		return strings.Contains(text, substr), nil
	})
}

func CountAtLeast(r Prober, page output.PagePort, q entity.ElementQuery, n int, deadline time.Duration) entity.WaitCondition {
	name := fmt.Sprintf("at least %d of %s", n, q.Label())
	return entity.Condition(name, deadline, func(ctx context.Context) (bool, error) {
		count, err := r.Count(ctx, page, q)
		if err != nil {
			return false, err
		}
		return count >= n, nil
	})
}

func URLMatches(page output.PagePort, re *regexp.Regexp, deadline time.Duration) entity.WaitCondition {
	return entity.Condition("url matches "+re.String(), deadline, func(ctx context.Context) (bool, error) {
		url, err := page.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		return re.MatchString(url), nil
	})
}

func NetworkIdle(page output.PagePort, deadline time.Duration) entity.WaitCondition {
	return entity.Condition("network idle", deadline, func(ctx context.Context) (bool, error) {
		if err := page.WaitForNetworkIdle(ctx, deadline); err != nil {
			return false, err
		}
		return true, nil
	})
}
