package domain

// TimeEntry records a span of work on a project by one user. The
// Ignore flag soft-excludes an entry from billable totals without
// deleting history.
type TimeEntry struct {
	ID          int64  `json:"id" db:"id"`
	Project     int64  `json:"project" db:"project"`
	User        int64  `json:"user" db:"user"`
	Description string `json:"description" db:"description"`
	StartDate   int64  `json:"startdate" db:"startdate"`
	EndDate     int64  `json:"enddate" db:"enddate"`
	Ignore      bool   `json:"ignore" db:"ignore"`
	CreateDate  int64  `json:"createdate" db:"createdate"`
	ChangedDate int64  `json:"changeddate" db:"changeddate"`
	Creator     int64  `json:"creator" db:"creator"`
}

// SaveTimeEntry is the insert-or-update input for a time entry.
type SaveTimeEntry struct {
	ID          *int64 `json:"id"`
	Project     int64  `json:"project"`
	User        int64  `json:"user"`
	Description string `json:"description"`
	StartDate   int64  `json:"startdate"`
	EndDate     int64  `json:"enddate"`
	Ignore      bool   `json:"ignore"`
}

// PayType tags a pay entry as an issued invoice or a received payment.
type PayType string

const (
	PayTypeInvoiced PayType = "Invoiced"
	PayTypePaid     PayType = "Paid"
)

// PayEntry records money movement against a project and user.
type PayEntry struct {
	ID          int64   `json:"id" db:"id"`
	Project     int64   `json:"project" db:"project"`
	User        int64   `json:"user" db:"user"`
	Duration    int64   `json:"duration" db:"duration"`
	PayType     PayType `json:"paytype" db:"-"`
	PaymentDate int64   `json:"paymentdate" db:"paymentdate"`
	Description string  `json:"description" db:"description"`
	CreateDate  int64   `json:"createdate" db:"createdate"`
	ChangedDate int64   `json:"changeddate" db:"changeddate"`
	Creator     int64   `json:"creator" db:"creator"`
}

// SavePayEntry is the insert-or-update input for a pay entry.
type SavePayEntry struct {
	ID          *int64  `json:"id"`
	Project     int64   `json:"project"`
	User        int64   `json:"user"`
	Duration    int64   `json:"duration"`
	PayType     PayType `json:"paytype"`
	PaymentDate int64   `json:"paymentdate"`
	Description string  `json:"description"`
}

// Allocation is a budget grant against a project, independent of any
// single user.
type Allocation struct {
	ID             int64  `json:"id" db:"id"`
	Project        int64  `json:"project" db:"project"`
	Duration       int64  `json:"duration" db:"duration"`
	AllocationDate int64  `json:"allocationdate" db:"allocationdate"`
	Description    string `json:"description" db:"description"`
	CreateDate     int64  `json:"createdate" db:"createdate"`
	ChangedDate    int64  `json:"changeddate" db:"changeddate"`
	Creator        int64  `json:"creator" db:"creator"`
}

// SaveAllocation is the insert-or-update input for an allocation.
type SaveAllocation struct {
	ID             *int64 `json:"id"`
	Project        int64  `json:"project"`
	Duration       int64  `json:"duration"`
	AllocationDate int64  `json:"allocationdate"`
	Description    string `json:"description"`
}

// SaveProjectTime is the batched ledger reconciliation for one project:
// four save lists and delete lists applied in a fixed order, each item
// independently. It is not atomic across items.
type SaveProjectTime struct {
	Project           int64            `json:"project"`
	SaveTimeEntries   []SaveTimeEntry  `json:"savetimeentries"`
	DeleteTimeEntries []int64          `json:"deletetimeentries"`
	SavePayEntries    []SavePayEntry   `json:"savepayentries"`
	DeletePayEntries  []int64          `json:"deletepayentries"`
	SaveAllocations   []SaveAllocation `json:"saveallocations"`
	DeleteAllocations []int64          `json:"deleteallocations"`
}

// ProjectTime is the full ledger snapshot for one project.
type ProjectTime struct {
	Project     Project         `json:"project"`
	Members     []ProjectMember `json:"members"`
	TimeEntries []TimeEntry     `json:"timeentries"`
	PayEntries  []PayEntry      `json:"payentries"`
	Allocations []Allocation    `json:"allocations"`
}
