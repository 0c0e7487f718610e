// Package domain contains the core types of the analytics service: event
// records, their kind and category vocabularies, typed payloads and the
// time windows aggregations run over.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by constructors and parsers.
var (
	ErrUnknownKind     = errors.New("unknown event kind")
	ErrUnknownCategory = errors.New("unknown event category")
	ErrMissingSession  = errors.New("session id is required")
	ErrInvalidPayload  = errors.New("invalid event payload")
	ErrInvalidPeriod   = errors.New("invalid period")
)

// Kind is the closed vocabulary of things that can happen on the site.
type Kind string

const (
	KindPageView           Kind = "page_view"
	KindUserAction         Kind = "user_action"
	KindAPICall            Kind = "api_call"
	KindSearch             Kind = "search"
	KindDownload           Kind = "download"
	KindParkView           Kind = "park_view"
	KindParkSave           Kind = "park_save"
	KindParkVisit          Kind = "park_visit"
	KindReviewCreate       Kind = "review_create"
	KindReviewHelpful      Kind = "review_helpful"
	KindBlogView           Kind = "blog_view"
	KindBlogShare          Kind = "blog_share"
	KindEventRegister      Kind = "event_register"
	KindEventView          Kind = "event_view"
	KindAIChat             Kind = "ai_chat"
	KindConversationCreate Kind = "conversation_create"
	KindImageUpload        Kind = "image_upload"
	KindUserSignup         Kind = "user_signup"
	KindUserLogin          Kind = "user_login"
	KindUserLogout         Kind = "user_logout"
	KindError              Kind = "error"
	KindPerformance        Kind = "performance"
)

// Category is the coarse bucket an event belongs to.
type Category string

const (
	CategoryUser       Category = "user"
	CategoryContent    Category = "content"
	CategoryEngagement Category = "engagement"
	CategoryTechnical  Category = "technical"
	CategoryBusiness   Category = "business"
)

// defaultCategories doubles as the set of valid kinds.
var defaultCategories = map[Kind]Category{
	KindPageView:           CategoryEngagement,
	KindUserAction:         CategoryEngagement,
	KindSearch:             CategoryEngagement,
	KindParkView:           CategoryEngagement,
	KindBlogView:           CategoryEngagement,
	KindEventView:          CategoryEngagement,
	KindParkSave:           CategoryEngagement,
	KindParkVisit:          CategoryEngagement,
	KindReviewHelpful:      CategoryEngagement,
	KindBlogShare:          CategoryEngagement,
	KindAIChat:             CategoryEngagement,
	KindReviewCreate:       CategoryContent,
	KindConversationCreate: CategoryContent,
	KindDownload:           CategoryContent,
	KindImageUpload:        CategoryContent,
	KindEventRegister:      CategoryBusiness,
	KindUserSignup:         CategoryUser,
	KindUserLogin:          CategoryUser,
	KindUserLogout:         CategoryUser,
	KindAPICall:            CategoryTechnical,
	KindError:              CategoryTechnical,
	KindPerformance:        CategoryTechnical,
}

var validCategories = map[Category]bool{
	CategoryUser:       true,
	CategoryContent:    true,
	CategoryEngagement: true,
	CategoryTechnical:  true,
	CategoryBusiness:   true,
}

// IsValid reports whether k is a recognised event kind.
func (k Kind) IsValid() bool {
	_, ok := defaultCategories[k]
	return ok
}

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	return validCategories[c]
}

// ParseKind validates s as an event kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// ParseCategory validates s as a category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// DefaultCategory returns the category used for k when the caller gives none.
func DefaultCategory(k Kind) Category {
	return defaultCategories[k]
}

// AllKinds returns every valid kind in declaration order.
func AllKinds() []Kind {
	return []Kind{
		KindPageView, KindUserAction, KindAPICall, KindSearch, KindDownload,
		KindParkView, KindParkSave, KindParkVisit, KindReviewCreate, KindReviewHelpful,
		KindBlogView, KindBlogShare, KindEventRegister, KindEventView, KindAIChat,
		KindConversationCreate, KindImageUpload, KindUserSignup, KindUserLogin,
		KindUserLogout, KindError, KindPerformance,
	}
}

// AllCategories returns every valid category.
func AllCategories() []Category {
	return []Category{CategoryUser, CategoryContent, CategoryEngagement, CategoryTechnical, CategoryBusiness}
}
