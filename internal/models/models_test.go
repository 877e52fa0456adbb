package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestUser_Fields(t *testing.T) {
	typ := reflect.TypeOf(User{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "Email", "uniqueIndex")
	assertGormTag(t, typ, "Email", "not null")
	assertGormTag(t, typ, "Role", "default:user")
	assertGormTag(t, typ, "WorkspaceID", "index")
	assertFieldType(t, typ, "LastLoginAt", "*time.Time")

	f, _ := typ.FieldByName("PasswordHash")
	if got := f.Tag.Get("json"); got != "-" {
		t.Errorf("User.PasswordHash json tag = %q, want %q", got, "-")
	}
}

func TestWorkspace_Fields(t *testing.T) {
	typ := reflect.TypeOf(Workspace{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Plan", "default:free")
	assertGormTag(t, typ, "OwnerID", "index")
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "WorkspaceID", "index")
	assertGormTag(t, typ, "WorkspaceID", "not null")
	assertGormTag(t, typ, "EditorState", "type:mediumtext")
	assertGormTag(t, typ, "StateHash", "size:64")
	assertGormTag(t, typ, "Version", "default:0")
	assertFieldType(t, typ, "SavedAt", "*time.Time")
	assertFieldType(t, typ, "Snapshots", "[]models.ProjectSnapshot")
}

func TestProjectSnapshot_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(ProjectSnapshot{})

	assertGormTag(t, typ, "ProjectID", "primaryKey")
	assertGormTag(t, typ, "Slot", "primaryKey")
}

func TestContent_Fields(t *testing.T) {
	typ := reflect.TypeOf(Content{})

	assertGormTag(t, typ, "Type", "default:text")
	assertGormTag(t, typ, "Status", "default:draft")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Body", "type:mediumtext")
	assertGormTag(t, typ, "Tags", "serializer:json")
	assertFieldType(t, typ, "Tags", "[]string")
}

func TestUpload_Fields(t *testing.T) {
	typ := reflect.TypeOf(Upload{})

	assertGormTag(t, typ, "Status", "default:initializing")
	assertFieldType(t, typ, "Size", "int64")

	f, _ := typ.FieldByName("StoredPath")
	if got := f.Tag.Get("json"); got != "-" {
		t.Errorf("Upload.StoredPath json tag = %q, want %q", got, "-")
	}
}

func TestScheduledPost_Fields(t *testing.T) {
	typ := reflect.TypeOf(ScheduledPost{})

	assertGormTag(t, typ, "Platform", "not null")
	assertGormTag(t, typ, "Status", "default:draft")
	assertGormTag(t, typ, "ScheduledAt", "index")
	assertFieldType(t, typ, "ScheduledAt", "*time.Time")
	assertFieldType(t, typ, "PostedAt", "*time.Time")
}

func TestScheduledPost_Engagement(t *testing.T) {
	p := ScheduledPost{Likes: 10, Shares: 3, Comments: 2, Views: 1000}
	if got := p.Engagement(); got != 15 {
		t.Errorf("Engagement() = %d, want 15", got)
	}
}

func TestSocialConnection_UniquePerPlatform(t *testing.T) {
	typ := reflect.TypeOf(SocialConnection{})

	assertGormTag(t, typ, "UserID", "uniqueIndex:idx_conn_user_platform")
	assertGormTag(t, typ, "Platform", "uniqueIndex:idx_conn_user_platform")
	assertGormTag(t, typ, "Active", "default:true")

	for _, secret := range []string{"AccessToken", "RefreshToken"} {
		f, _ := typ.FieldByName(secret)
		if got := f.Tag.Get("json"); got != "-" {
			t.Errorf("SocialConnection.%s json tag = %q, want %q", secret, got, "-")
		}
	}
}

func TestTemplatePerformance_UniquePerWorkspace(t *testing.T) {
	typ := reflect.TypeOf(TemplatePerformance{})

	assertGormTag(t, typ, "TemplateID", "uniqueIndex:idx_tpl_workspace")
	assertGormTag(t, typ, "WorkspaceID", "uniqueIndex:idx_tpl_workspace")
	assertFieldType(t, typ, "EngagementRate", "float64")
	assertFieldType(t, typ, "Score", "float64")
}

func TestClientLog_Fields(t *testing.T) {
	typ := reflect.TypeOf(ClientLog{})

	assertGormTag(t, typ, "Level", "index")
	assertGormTag(t, typ, "CreatedAt", "index")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}
