package models

import "time"

// Project groups form templates.
type Project struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// FormTemplate is a form definition owned by a project.
type FormTemplate struct {
	ID        int64     `db:"id" json:"id"`
	ProjectID int64     `db:"project_id" json:"projectId"`
	Name      string    `db:"name" json:"name"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// FormTemplateVersion pins one revision of a template.
type FormTemplateVersion struct {
	ID             int64     `db:"id" json:"id"`
	FormTemplateID int64     `db:"form_template_id" json:"formTemplateId"`
	Version        int       `db:"version" json:"version"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
