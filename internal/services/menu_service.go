package services

import (
	"context"
	"strings"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/storage"
	"aicavalli-order-service/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type MenuView struct {
	Categories []domain.Category `json:"categories"`
	Items      []domain.MenuItem `json:"items"`
}

type MenuItemInput struct {
	CategoryID  *uuid.UUID      `json:"categoryId"`
	Name        string          `json:"name" validate:"required,max=120"`
	Description string          `json:"description" validate:"max=1000"`
	Price       decimal.Decimal `json:"price"`
	Available   *bool           `json:"available"`
}

type CategoryInput struct {
	Name      string `json:"name" validate:"required,max=80"`
	SortOrder int    `json:"sortOrder"`
}

type SpecialInput struct {
	MenuItemID uuid.UUID `json:"menuItemId" validate:"required"`
	Date       string    `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Period     string    `json:"period" validate:"omitempty,oneof=breakfast lunch dinner all_day"`
}

type AnnouncementInput struct {
	Title  string `json:"title" validate:"required,max=160"`
	Body   string `json:"body" validate:"max=2000"`
	Active *bool  `json:"active"`
}

type MenuService struct {
	menu     MenuStore
	content  ContentStore
	blobs    BlobStore
	logger   *zap.Logger
	now      func() time.Time
	timezone string
}

func NewMenuService(menu MenuStore, content ContentStore, blobs BlobStore, logger *zap.Logger, timezone string, now func() time.Time) *MenuService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MenuService{menu: menu, content: content, blobs: blobs, logger: logger, now: clock(now), timezone: timezone}
}

func (s *MenuService) PublicMenu(ctx context.Context, onlyAvailable bool) (MenuView, error) {
	categories, items, err := s.menu.ListMenu(ctx, onlyAvailable)
	if err != nil {
		return MenuView{}, domain.AsError(err)
	}
	return MenuView{Categories: categories, Items: items}, nil
}

// TodaySpecials lists specials dated today in the restaurant timezone.
func (s *MenuService) TodaySpecials(ctx context.Context) ([]domain.DailySpecial, error) {
	specials, err := s.content.SpecialsForDate(ctx, utils.CurrentDateInTimezone(s.timezone, s.now()))
	if err != nil {
		return nil, domain.AsError(err)
	}
	return specials, nil
}

func (s *MenuService) Announcements(ctx context.Context) ([]domain.Announcement, error) {
	list, err := s.content.ListAnnouncements(ctx, true)
	if err != nil {
		return nil, domain.AsError(err)
	}
	return list, nil
}

func (s *MenuService) CreateItem(ctx context.Context, actor *domain.Actor, in MenuItemInput) (domain.MenuItem, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.MenuItem{}, err
	}
	item, err := s.itemFromInput(domain.MenuItem{ID: uuid.New(), Available: true}, in)
	if err != nil {
		return domain.MenuItem{}, err
	}
	created, err := s.menu.CreateMenuItem(ctx, item)
	if err != nil {
		return domain.MenuItem{}, domain.AsError(err)
	}
	return created, nil
}

func (s *MenuService) UpdateItem(ctx context.Context, actor *domain.Actor, id uuid.UUID, in MenuItemInput) (domain.MenuItem, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.MenuItem{}, err
	}
	existing, err := s.menu.GetMenuItem(ctx, id)
	if err != nil {
		return domain.MenuItem{}, storeError(err, "Menu item not found")
	}
	item, err := s.itemFromInput(existing, in)
	if err != nil {
		return domain.MenuItem{}, err
	}
	updated, err := s.menu.UpdateMenuItem(ctx, item)
	if err != nil {
		return domain.MenuItem{}, storeError(err, "Menu item not found")
	}
	return updated, nil
}

func (s *MenuService) itemFromInput(item domain.MenuItem, in MenuItemInput) (domain.MenuItem, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validateInput(in); err != nil {
		return domain.MenuItem{}, err
	}
	if in.Price.IsNegative() {
		return domain.MenuItem{}, domain.ValidationError("price: Must be greater than or equal to 0", map[string]any{"price": "Must be greater than or equal to 0"})
	}
	item.CategoryID = in.CategoryID
	item.Name = in.Name
	item.Description = in.Description
	item.Price = domain.Round2(in.Price)
	if in.Available != nil {
		item.Available = *in.Available
	}
	return item, nil
}

// SetAvailability toggles whether new orders may include the item. Existing orders keep
// their snapshotted lines.
func (s *MenuService) SetAvailability(ctx context.Context, actor *domain.Actor, id uuid.UUID, available bool) (domain.MenuItem, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.MenuItem{}, err
	}
	item, err := s.menu.SetMenuItemAvailability(ctx, id, available)
	if err != nil {
		return domain.MenuItem{}, storeError(err, "Menu item not found")
	}
	return item, nil
}

// UploadImage stores a resized JPEG and a square thumbnail and points the item at them.
// The previous images are removed best-effort.
func (s *MenuService) UploadImage(ctx context.Context, actor *domain.Actor, id uuid.UUID, data []byte) (domain.MenuItem, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.MenuItem{}, err
	}
	if s.blobs == nil {
		return domain.MenuItem{}, domain.StateError(domain.ErrCodeConflict, "Object storage is not configured", nil)
	}
	existing, err := s.menu.GetMenuItem(ctx, id)
	if err != nil {
		return domain.MenuItem{}, storeError(err, "Menu item not found")
	}
	if !utils.ValidateImageContentType(utils.DetectContentType(data)) {
		return domain.MenuItem{}, domain.ValidationError("Unsupported image type", nil)
	}
	processed, err := utils.ProcessMenuImage(data)
	if err != nil {
		return domain.MenuItem{}, domain.ValidationError("Image could not be processed", map[string]any{"reason": err.Error()})
	}

	fullKey, thumbKey := storage.MenuImageKeys(id, s.now())
	fullURL, err := s.blobs.PutObject(ctx, fullKey, processed.Full, "image/jpeg", "public, max-age=31536000, immutable")
	if err != nil {
		return domain.MenuItem{}, domain.InternalError(err)
	}
	thumbURL, err := s.blobs.PutObject(ctx, thumbKey, processed.Thumb, "image/jpeg", "public, max-age=31536000, immutable")
	if err != nil {
		return domain.MenuItem{}, domain.InternalError(err)
	}
	updated, err := s.menu.SetMenuItemImage(ctx, id, fullURL, thumbURL)
	if err != nil {
		return domain.MenuItem{}, storeError(err, "Menu item not found")
	}

	for _, old := range []*string{existing.ImageURL, existing.ImageThumbURL} {
		if old == nil || *old == "" {
			continue
		}
		if err := s.blobs.DeleteURL(ctx, *old); err != nil {
			s.logger.Warn("old menu image delete failed", zap.String("url", *old), zap.Error(err))
		}
	}
	return updated, nil
}

func (s *MenuService) CreateCategory(ctx context.Context, actor *domain.Actor, in CategoryInput) (domain.Category, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.Category{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput(in); err != nil {
		return domain.Category{}, err
	}
	category, err := s.menu.CreateCategory(ctx, domain.Category{ID: uuid.New(), Name: in.Name, SortOrder: in.SortOrder})
	if err != nil {
		return domain.Category{}, domain.AsError(err)
	}
	return category, nil
}

func (s *MenuService) CreateSpecial(ctx context.Context, actor *domain.Actor, in SpecialInput) (domain.DailySpecial, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.DailySpecial{}, err
	}
	if err := validateInput(in); err != nil {
		return domain.DailySpecial{}, err
	}
	if in.Date == "" {
		in.Date = utils.CurrentDateInTimezone(s.timezone, s.now())
	}
	if in.Period == "" {
		in.Period = "all_day"
	}
	item, err := s.menu.GetMenuItem(ctx, in.MenuItemID)
	if err != nil {
		return domain.DailySpecial{}, storeError(err, "Menu item not found")
	}
	special, err := s.content.CreateSpecial(ctx, domain.DailySpecial{
		ID:         uuid.New(),
		MenuItemID: item.ID,
		Date:       in.Date,
		Period:     in.Period,
	})
	if err != nil {
		return domain.DailySpecial{}, domain.AsError(err)
	}
	special.Item = &item
	return special, nil
}

func (s *MenuService) CreateAnnouncement(ctx context.Context, actor *domain.Actor, in AnnouncementInput) (domain.Announcement, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return domain.Announcement{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return domain.Announcement{}, err
	}
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	announcement, err := s.content.CreateAnnouncement(ctx, domain.Announcement{
		ID:        uuid.New(),
		Title:     in.Title,
		Body:      strings.TrimSpace(in.Body),
		Active:    active,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Announcement{}, domain.AsError(err)
	}
	return announcement, nil
}
