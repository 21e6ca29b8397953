package domain

// ExtraFields holds free-form key/value pairs attached to a project.
// They are pass-through data for invoice templating; the storage layer
// serializes them as an opaque JSON blob.
type ExtraFields map[string]string

// Project is the top-level billable engagement entity.
type Project struct {
	ID                int64       `json:"id" db:"id"`
	Name              string      `json:"name" db:"name"`
	Description       string      `json:"description" db:"description"`
	Public            bool        `json:"public" db:"public"`
	Rate              *float64    `json:"rate" db:"rate"`
	Currency          *string     `json:"currency" db:"currency"`
	DueDays           *int64      `json:"due_days" db:"due_days"`
	ExtraFields       ExtraFields `json:"extra_fields" db:"-"`
	InvoiceIDTemplate string      `json:"invoice_id_template" db:"invoice_id_template"`
	InvoiceSeq        int64       `json:"invoice_seq" db:"invoice_seq"`
	Payer             string      `json:"payer" db:"payer"`
	Payee             string      `json:"payee" db:"payee"`
	GenericTask       string      `json:"generic_task" db:"generic_task"`
	CreateDate        int64       `json:"createdate" db:"createdate"`
	ChangedDate       int64       `json:"changeddate" db:"changeddate"`
}

// ListProject is a row in the caller's project list, tagged with the
// caller's own role on that project.
type ListProject struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Role Role   `json:"role" db:"role"`
}

// SaveProject is the insert-or-update input for a project. A nil ID
// means insert.
type SaveProject struct {
	ID                *int64      `json:"id"`
	Name              string      `json:"name"`
	Description       string      `json:"description"`
	Public            bool        `json:"public"`
	Rate              *float64    `json:"rate"`
	Currency          *string     `json:"currency"`
	DueDays           *int64      `json:"due_days"`
	ExtraFields       ExtraFields `json:"extra_fields"`
	InvoiceIDTemplate string      `json:"invoice_id_template"`
	InvoiceSeq        int64       `json:"invoice_seq"`
	Payer             string      `json:"payer"`
	Payee             string      `json:"payee"`
	GenericTask       string      `json:"generic_task"`
}

// SavedProject is the minimal acknowledgement of a project save.
// Callers re-read the project if they need the full record.
type SavedProject struct {
	ID          int64 `json:"id"`
	ChangedDate int64 `json:"changeddate"`
}

// ProjectMember is a user's membership on a project.
type ProjectMember struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Role Role   `json:"role" db:"role"`
}

// SaveProjectMember is one membership change in a project edit: upsert
// the role, or remove the membership when Delete is set.
type SaveProjectMember struct {
	ID     int64 `json:"id"`
	Role   Role  `json:"role"`
	Delete bool  `json:"delete"`
}

// SaveProjectEdit bundles a project save with membership changes.
type SaveProjectEdit struct {
	Project SaveProject         `json:"project"`
	Members []SaveProjectMember `json:"members"`
}

// SavedProjectEdit is the full re-read state after a project edit.
type SavedProjectEdit struct {
	Project Project         `json:"project"`
	Members []ProjectMember `json:"members"`
}

// ProjectEdit is the project plus its member list, as shown on the
// project edit screen.
type ProjectEdit struct {
	Project Project         `json:"project"`
	Members []ProjectMember `json:"members"`
}

// SaveProjectInvoice advances a project's invoice sequence after an
// invoice has been generated. InvoiceSeq only moves through this
// operation.
type SaveProjectInvoice struct {
	ID          int64       `json:"id"`
	InvoiceSeq  int64       `json:"invoice_seq"`
	ExtraFields ExtraFields `json:"extra_fields"`
}
