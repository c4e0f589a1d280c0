// Package validation enforces request shape at the HTTP boundary so the
// ordering engine only ever sees well-formed input.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"ideaflow/pkg/models"
)

// Rules bound request content. Zero values fall back to defaults at
// SetRules time.
type Rules struct {
	MaxTitleLen int
	MaxBodyLen  int
	MaxTags     int
	MaxTagLen   int
	MaxWindow   int // largest count accepted on list requests
	Statuses    []string
}

var rules = Rules{
	MaxTitleLen: 512,
	MaxBodyLen:  64 * 1024,
	MaxTags:     32,
	MaxTagLen:   64,
	MaxWindow:   100,
	Statuses:    []string{"", "draft", "active", "done", "archived"},
}

// SetRules installs the configured bounds. Zero fields keep their defaults.
func SetRules(r Rules) {
	if r.MaxTitleLen > 0 {
		rules.MaxTitleLen = r.MaxTitleLen
	}
	if r.MaxBodyLen > 0 {
		rules.MaxBodyLen = r.MaxBodyLen
	}
	if r.MaxTags > 0 {
		rules.MaxTags = r.MaxTags
	}
	if r.MaxTagLen > 0 {
		rules.MaxTagLen = r.MaxTagLen
	}
	if r.MaxWindow > 0 {
		rules.MaxWindow = r.MaxWindow
	}
	if len(r.Statuses) > 0 {
		rules.Statuses = append([]string{""}, r.Statuses...)
	}
}

// MaxWindow reports the configured list window bound.
func MaxWindow() int { return rules.MaxWindow }

func content(title, body, status string, tags []string, errs *[]string) {
	if strings.TrimSpace(title) == "" {
		*errs = append(*errs, "title is required")
	} else if len(title) > rules.MaxTitleLen {
		*errs = append(*errs, fmt.Sprintf("title exceeds %d bytes", rules.MaxTitleLen))
	}
	if len(body) > rules.MaxBodyLen {
		*errs = append(*errs, fmt.Sprintf("body exceeds %d bytes", rules.MaxBodyLen))
	}
	if len(tags) > rules.MaxTags {
		*errs = append(*errs, fmt.Sprintf("more than %d tags", rules.MaxTags))
	}
	for _, tag := range tags {
		if tag == "" || len(tag) > rules.MaxTagLen {
			*errs = append(*errs, fmt.Sprintf("invalid tag %q", tag))
			break
		}
	}
	if !validStatus(status) {
		*errs = append(*errs, fmt.Sprintf("invalid status %q", status))
	}
}

func validStatus(s string) bool {
	for _, v := range rules.Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ValidateCreate checks a creation body.
func ValidateCreate(req models.CreatePostRequest) error {
	var errs []string
	content(req.Title, req.Body, req.Status, req.Tags, &errs)
	return joined(errs)
}

// ValidateUpdate checks a full-replace body.
func ValidateUpdate(req models.UpdatePostRequest) error {
	var errs []string
	content(req.Title, req.Body, req.Status, req.Tags, &errs)
	return joined(errs)
}

// ValidatePatch checks only the fields a partial update sets.
func ValidatePatch(req models.PatchPostRequest) error {
	var errs []string
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			errs = append(errs, "title cannot be blank")
		} else if len(*req.Title) > rules.MaxTitleLen {
			errs = append(errs, fmt.Sprintf("title exceeds %d bytes", rules.MaxTitleLen))
		}
	}
	if req.Body != nil && len(*req.Body) > rules.MaxBodyLen {
		errs = append(errs, fmt.Sprintf("body exceeds %d bytes", rules.MaxBodyLen))
	}
	if req.Tags != nil {
		if len(*req.Tags) > rules.MaxTags {
			errs = append(errs, fmt.Sprintf("more than %d tags", rules.MaxTags))
		}
		for _, tag := range *req.Tags {
			if tag == "" || len(tag) > rules.MaxTagLen {
				errs = append(errs, fmt.Sprintf("invalid tag %q", tag))
				break
			}
		}
	}
	if req.Status != nil && !validStatus(*req.Status) {
		errs = append(errs, fmt.Sprintf("invalid status %q", *req.Status))
	}
	return joined(errs)
}

// ValidateReorder checks the mutually exclusive order/moves shape. Deeper
// consistency (duplicates, unknown ids) is the planner's job.
func ValidateReorder(req models.ReorderRequest) error {
	var errs []string
	if (len(req.Order) == 0) == (len(req.Moves) == 0) {
		errs = append(errs, "exactly one of order and moves must be set")
	}
	for _, id := range req.Order {
		if id == "" {
			errs = append(errs, "order contains an empty id")
			break
		}
	}
	for _, m := range req.Moves {
		if m.ID == "" {
			errs = append(errs, "moves contains an empty id")
			break
		}
		if m.Index < 0 {
			errs = append(errs, fmt.Sprintf("negative index for %s", m.ID))
			break
		}
	}
	return joined(errs)
}

// ValidateMove checks a neighbor move body.
func ValidateMove(req models.MoveRequest) error {
	var errs []string
	if req.ID == "" {
		errs = append(errs, "id is required")
	}
	if req.After != "" && req.After == req.ID {
		errs = append(errs, "after cannot equal id")
	}
	if req.Before != "" && req.Before == req.ID {
		errs = append(errs, "before cannot equal id")
	}
	if req.After != "" && req.After == req.Before {
		errs = append(errs, "after and before must differ")
	}
	return joined(errs)
}

// ValidateCount bounds the list window, returning the effective count.
func ValidateCount(count int) (int, error) {
	if count == 0 {
		return rules.MaxWindow, nil
	}
	if count < 0 || count > rules.MaxWindow {
		return 0, fmt.Errorf("count must be between 1 and %d", rules.MaxWindow)
	}
	return count, nil
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}
