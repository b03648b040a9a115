package domain

import (
	"strings"
	"time"
)

// Language is the primary language of a project. Unknown names map to LanguageOther.
type Language string

const (
	LanguagePython     Language = "Python"
	LanguageJavaScript Language = "JavaScript"
	LanguageTypeScript Language = "TypeScript"
	LanguageJava       Language = "Java"
	LanguageGo         Language = "Go"
	LanguageRust       Language = "Rust"
	LanguageCPP        Language = "C++"
	LanguageC          Language = "C"
	LanguageCSharp     Language = "C#"
	LanguagePHP        Language = "PHP"
	LanguageRuby       Language = "Ruby"
	LanguageSwift      Language = "Swift"
	LanguageKotlin     Language = "Kotlin"
	LanguageScala      Language = "Scala"
	LanguageR          Language = "R"
	LanguageJulia      Language = "Julia"
	LanguageJupyter    Language = "Jupyter Notebook"
	LanguageShell      Language = "Shell"
	LanguageHTML       Language = "HTML"
	LanguageCSS        Language = "CSS"
	LanguageDart       Language = "Dart"
	LanguageLua        Language = "Lua"
	LanguageOther      Language = "Other"
)

var knownLanguages = []Language{
	LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageJava, LanguageGo,
	LanguageRust, LanguageCPP, LanguageC, LanguageCSharp, LanguagePHP, LanguageRuby,
	LanguageSwift, LanguageKotlin, LanguageScala, LanguageR, LanguageJulia, LanguageJupyter,
	LanguageShell, LanguageHTML, LanguageCSS, LanguageDart, LanguageLua,
}

// ParseLanguage maps a forge language name onto the fixed set, case-insensitively.
// Empty and unrecognized names yield LanguageOther.
func ParseLanguage(name string) Language {
	name = strings.TrimSpace(name)
	for _, l := range knownLanguages {
		if strings.EqualFold(string(l), name) {
			return l
		}
	}
	return LanguageOther
}

// ProjectStatus is derived from the archived/fork/template flags and never stored.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
	ProjectStatusForked   ProjectStatus = "forked"
	ProjectStatusTemplate ProjectStatus = "template"
)

// DeriveStatus applies the precedence archived > fork > template > active.
func DeriveStatus(archived, fork, template bool) ProjectStatus {
	switch {
	case archived:
		return ProjectStatusArchived
	case fork:
		return ProjectStatusForked
	case template:
		return ProjectStatusTemplate
	default:
		return ProjectStatusActive
	}
}

// Project is one repository as collected from the forge.
// ID is the forge's stable repository ID and the upsert key; FullName is unique
// but a rename keeps the ID.
type Project struct {
	ID          int64       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string      `gorm:"type:text;not null" json:"name"`
	FullName    string      `gorm:"type:text;not null;uniqueIndex:idx_projects_full_name" json:"full_name"`
	Description string      `gorm:"type:text" json:"description"`
	Language    Language    `gorm:"type:text;index:idx_projects_language" json:"language"`
	Topics      StringArray `gorm:"type:text" json:"topics"`
	Homepage    string      `gorm:"type:text" json:"homepage"`
	License     string      `gorm:"type:text" json:"license"`

	Stars      int `gorm:"index:idx_projects_stars" json:"stars"`
	Forks      int `json:"forks"`
	Watchers   int `json:"watchers"`
	OpenIssues int `json:"open_issues"`

	IsFork     bool `json:"is_fork"`
	IsTemplate bool `json:"is_template"`
	IsArchived bool `json:"is_archived"`

	CreatedAt   time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	PushedAt    time.Time `json:"pushed_at"`
	CollectedAt time.Time `gorm:"index:idx_projects_collected_at" json:"collected_at"`
	LastChecked time.Time `json:"last_checked"`

	ReadmeContent  string `gorm:"type:text" json:"readme_content"`
	ReadmeEncoding string `gorm:"type:text" json:"readme_encoding"`

	OwnerLogin    string `gorm:"type:text" json:"owner_login"`
	OwnerType     string `gorm:"type:text" json:"owner_type"`
	DefaultBranch string `gorm:"type:text" json:"default_branch"`
	Size          int    `json:"size"`
	HasWiki       bool   `json:"has_wiki"`
	HasPages      bool   `json:"has_pages"`

	// Store bookkeeping for the vectorizer, carried across full-replace upserts.
	ContentChangedAt *time.Time `json:"-"`
	VectorizedAt     *time.Time `json:"-"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string {
	return "github_projects"
}

// Status derives the project status from its flags.
func (p *Project) Status() ProjectStatus {
	return DeriveStatus(p.IsArchived, p.IsFork, p.IsTemplate)
}

// ProjectView is the outward representation of a project, with its derived status.
type ProjectView struct {
	Project
	Status ProjectStatus `json:"status"`
}

// NewProjectView wraps p with its derived status.
func NewProjectView(p Project) ProjectView {
	return ProjectView{Project: p, Status: p.Status()}
}
