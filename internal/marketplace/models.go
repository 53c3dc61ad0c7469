package marketplace

// Document shapes mirror the marketplace's persisted JSON. Field names are the
// wire/storage names the frontend already depends on, so they are not
// idiomatic Go JSON.

// Role is the closed set of caller identities. It is resolved once at
// authentication time; services never branch on raw strings.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps a stored or claimed role string onto the closed set.
// Anything unrecognized degrades to RoleUser.
func ParseRole(value string) Role {
	if value == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// UserStats aggregates rental activity for one user.
type UserStats struct {
	ActiveRentals int     `json:"activeRentals"`
	PointsEarned  float64 `json:"pointsEarned"`
	TotalSpent    float64 `json:"totalSpent"`
}

// MembershipDetails carries the loyalty program state.
type MembershipDetails struct {
	Points       float64 `json:"points"`
	Tier         string  `json:"tier"`
	RentalStreak int     `json:"rentalStreak"`
}

// User is the root entity. A user is fully onboarded only once all three chain
// references are set; the onboarding saga guarantees no partially linked user
// survives a failure.
type User struct {
	Email             string            `json:"email"`
	DisplayName       string            `json:"displayName,omitempty"`
	PhotoURL          string            `json:"photoURL,omitempty"`
	Role              string            `json:"role,omitempty"`
	Wishlist          []string          `json:"wishlist"`
	RentalOrders      []string          `json:"rentalOrders"`
	Stats             UserStats         `json:"stats"`
	MembershipDetails MembershipDetails `json:"membershipDetails"`

	FailedLoginAttempts    int    `json:"failedLoginAttempts"`
	LastFailedLoginAttempt int64  `json:"lastFailedLoginAttempt"`
	LoginRestricted        bool   `json:"loginRestricted"`
	LoginRestrictedUntil   *int64 `json:"loginRestrictedUntil"`

	MessageChainID         string `json:"messageChain_id,omitempty"`
	NotificationChainID    string `json:"notificationChain_id,omitempty"`
	ActivityHistoryChainID string `json:"activityHistoryChain_id,omitempty"`
}

// Message is one entry in a user's message chain.
type Message struct {
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	TimestampMS int64  `json:"timestamp"`
	ReadByUser  bool   `json:"readByUser"`
	ReadByAdmin bool   `json:"readByAdmin"`
}

// MessageChain is the per-user ordered message log plus its derived counters.
// The counters always stay consistent with the entries because entry and
// counters are written in one single-document update.
type MessageChain struct {
	UserEmail          string    `json:"user_email"`
	Entries            []Message `json:"message_chain"`
	TotalCount         int       `json:"total_count"`
	UnreadByUserCount  int       `json:"unreadByUser_count"`
	UnreadByAdminCount int       `json:"unreadByAdmin_count"`
}

// NotificationChain is the per-user ordered notification log.
type NotificationChain struct {
	UserEmail   string                   `json:"user_email"`
	Entries     []map[string]interface{} `json:"notification_chain"`
	TotalCount  int                      `json:"total_count"`
	UnreadCount int                      `json:"unread_count"`
}

// ActivityHistoryChain is the per-user ordered activity log.
type ActivityHistoryChain struct {
	UserEmail string                   `json:"user_email"`
	Entries   []map[string]interface{} `json:"activityHistory_chain"`
}

// GadgetPricing carries the rental price tiers.
type GadgetPricing struct {
	PerDay float64 `json:"perDay"`
}

// GadgetAvailability tracks calendar blocking. BlockedDates is an ordered
// sequence of date strings; duplicates are permitted because overlapping
// orders may each block the same submission window.
type GadgetAvailability struct {
	BlockedDates []string `json:"blockedDates"`
}

// Gadget is a catalog item.
type Gadget struct {
	Name             string             `json:"name"`
	Category         string             `json:"category"`
	Description      string             `json:"description"`
	Images           []string           `json:"images"`
	Pricing          GadgetPricing      `json:"pricing"`
	AverageRating    float64            `json:"average_rating"`
	TotalRentalCount int                `json:"totalRentalCount"`
	Availability     GadgetAvailability `json:"availability"`
}

// GadgetSummary is the trimmed catalog listing shape.
type GadgetSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Image         string  `json:"image"`
	PricePerDay   float64 `json:"pricePerDay"`
	AverageRating float64 `json:"average_rating"`
	Description   string  `json:"description"`
	Popularity    int     `json:"popularity"`
}

// StreakEntry is one charge/points record in a rental order's history. Only
// the most recent entry drives aggregate-stat deltas; earlier entries are
// historical display data.
type StreakEntry struct {
	Points             float64 `json:"points"`
	PayableFinalAmount float64 `json:"payableFinalAmount"`
	RentalDuration     int     `json:"rentalDuration"`
	StartDate          string  `json:"startDate,omitempty"`
	EndDate            string  `json:"endDate,omitempty"`
}

// RentalOrder references a gadget and its renter.
type RentalOrder struct {
	GadgetID     string        `json:"gadget_id"`
	UserEmail    string        `json:"userEmail"`
	Status       string        `json:"status,omitempty"`
	RentalStreak []StreakEntry `json:"rentalStreak"`
	BlockedDates []string      `json:"blockedDates"`
	CreatedAtMS  int64         `json:"createdAt,omitempty"`
}

// lastStreakEntry returns the entry whose figures are applied to the renter's
// aggregates, or false when the order carries no streak entries.
func lastStreakEntry(order RentalOrder) (StreakEntry, bool) {
	if len(order.RentalStreak) == 0 {
		return StreakEntry{}, false
	}
	return order.RentalStreak[len(order.RentalStreak)-1], true
}
