package cli

import (
	"strings"
	"time"

	"emart_admin/internal/api"
)

// filterOrders matches search against the order id or customer, and feedback exactly.
func filterOrders(orders []api.Order, search, feedback string) []api.Order {
	needle := strings.ToLower(strings.TrimSpace(search))
	feedback = strings.TrimSpace(feedback)

	out := make([]api.Order, 0, len(orders))
	for _, o := range orders {
		if needle != "" &&
			!strings.Contains(strings.ToLower(string(o.ID)), needle) &&
			!strings.Contains(strings.ToLower(string(o.User)), needle) {
			continue
		}
		if feedback != "" && string(o.Feedback) != feedback {
			continue
		}
		out = append(out, o)
	}
	return out
}

// filterUsers keeps users whose phone contains phone and who joined on the
// given YYYY-MM-DD day.
func filterUsers(users []api.User, phone, joined string) []api.User {
	phone = strings.TrimSpace(phone)
	joined = strings.TrimSpace(joined)

	out := make([]api.User, 0, len(users))
	for _, u := range users {
		if phone != "" && !strings.Contains(string(u.Phone), phone) {
			continue
		}
		if joined != "" && joinDay(u.CreatedAt) != joined {
			continue
		}
		out = append(out, u)
	}
	return out
}

func joinDay(raw string) string {
	t := api.ParseTime(raw)
	if t.IsZero() {
		return raw
	}
	return t.UTC().Format(time.DateOnly)
}

func filterVendors(vendors []api.Vendor, search string) []api.Vendor {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return vendors
	}
	out := make([]api.Vendor, 0, len(vendors))
	for _, v := range vendors {
		if strings.Contains(strings.ToLower(v.Name), needle) ||
			strings.Contains(strings.ToLower(v.ShopName), needle) ||
			strings.Contains(string(v.Phone), needle) {
			out = append(out, v)
		}
	}
	return out
}
