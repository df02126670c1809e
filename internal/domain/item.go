package domain

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusBorrowed  ItemStatus = "borrowed"
	ItemStatusLost      ItemStatus = "lost"
	ItemStatusRepair    ItemStatus = "repair"
)

// ValidItemStatus reports whether s is one of the known item states.
func ValidItemStatus(s ItemStatus) bool {
	switch s {
	case ItemStatusAvailable, ItemStatusBorrowed, ItemStatusLost, ItemStatusRepair:
		return true
	}
	return false
}

// Book is a catalog title; physical copies are tracked as BookItems.
type Book struct {
	ID       int64
	Title    string
	Author   string
	ISBN     string
	CoverURL string
}

// BookItem is one physical copy on a shelf. Its status is owned by the books
// service; the loans service only reads and updates it over HTTP.
type BookItem struct {
	ID            int64
	BookID        int64
	InventoryCode string
	Status        ItemStatus
	RackLocation  string
	Book          *Book
}
