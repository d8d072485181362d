package address

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/angelmondragon/storefront/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/google/uuid"
)

const defaultCountry = "IN"

type Service interface {
	Resolve(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.Address, error)
}

// Input picks a saved address by ID or supplies a new one to save.
type Input struct {
	ID  *uuid.UUID  `json:"id,omitempty"`
	New *NewAddress `json:"new,omitempty"`
}

type NewAddress struct {
	FullName   string  `json:"full_name"`
	Phone      string  `json:"phone"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Resolve(ctx context.Context, userID uuid.UUID, input Input) (*models.Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	switch {
	case input.ID != nil && input.New != nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provide either an address id or a new address")
	case input.ID != nil:
		return s.repo.FindForUser(ctx, userID, *input.ID)
	case input.New != nil:
		addr, err := normalize(userID, *input.New)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, addr); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save address")
		}
		return addr, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	return s.repo.ListByUser(ctx, userID)
}

func normalize(userID uuid.UUID, in NewAddress) (*models.Address, error) {
	addr := &models.Address{
		UserID:     userID,
		FullName:   strings.TrimSpace(in.FullName),
		Phone:      strings.TrimSpace(in.Phone),
		Line1:      strings.TrimSpace(in.Line1),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
	}
	if in.Line2 != nil {
		if line2 := strings.TrimSpace(*in.Line2); line2 != "" {
			addr.Line2 = &line2
		}
	}
	if addr.Country == "" {
		addr.Country = defaultCountry
	}

	var missing []string
	for field, value := range map[string]string{
		"full_name":   addr.FullName,
		"phone":       addr.Phone,
		"line1":       addr.Line1,
		"city":        addr.City,
		"state":       addr.State,
		"postal_code": addr.PostalCode,
	} {
		if value == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return addr, nil
}

// Format renders an address on one line for order summaries.
func Format(addr models.Address) string {
	parts := []string{addr.FullName, addr.Line1}
	if addr.Line2 != nil && *addr.Line2 != "" {
		parts = append(parts, *addr.Line2)
	}
	parts = append(parts, addr.City, addr.State+" "+addr.PostalCode, addr.Country)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
