package model_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/m-mizutani/gt"
)

func TestNewIdentity(t *testing.T) {
	testCases := []struct {
		name    string
		inName  string
		inEmail string
		wantErr bool
	}{
		{"valid", "Dr. Jane Smith", "jane@uni.edu", false},
		{"trimmed", "  Jane  ", " jane@uni.edu ", false},
		{"blank name", "   ", "jane@uni.edu", true},
		{"blank email", "Jane", "", true},
		{"not an email is accepted", "Jane", "jane", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := model.NewIdentity(tc.inName, tc.inEmail)
			if tc.wantErr {
				gt.Error(t, err)
				gt.True(t, errors.Is(err, model.ErrInvalidIdentity))
				return
			}
			gt.NoError(t, err)
			gt.NoError(t, id.Validate())
		})
	}
}

func TestScopeKey(t *testing.T) {
	a := &model.Identity{Name: "Jane", Email: "jane@uni.edu"}
	b := &model.Identity{Name: "Someone Else", Email: "jane@uni.edu"}
	c := &model.Identity{Name: "Jane", Email: "john@uni.edu"}

	// btoa("jane@uni.edu") = "amFuZUB1bmkuZWR1"
	gt.Equal(t, a.ScopeKey(), model.ScopeKey("amFuZUB1bmkuZWR1"))
	gt.Equal(t, a.ScopeKey(), b.ScopeKey())
	gt.True(t, a.ScopeKey() != c.ScopeKey())

	long := &model.Identity{Name: "L", Email: "a.very.long.address@some-university.edu"}
	gt.Equal(t, len(long.ScopeKey()), 20)
}

func TestNewLoginEntry(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("JST", 9*3600))
	entry := model.NewLoginEntry(&model.Identity{Name: "Jane", Email: "jane@uni.edu"}, at)

	gt.Equal(t, entry.FullName, "Jane")
	gt.Equal(t, entry.Email, "jane@uni.edu")
	gt.True(t, entry.Timestamp.Equal(at))
	gt.Equal(t, entry.Timestamp.Location(), time.UTC)
	gt.NotEqual(t, entry.ID, model.LoginEntryID(""))
}

func TestCropStatusValidate(t *testing.T) {
	for _, s := range model.CropStatuses {
		gt.NoError(t, s.Validate())
	}
	err := model.CropStatus("dying").Validate()
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrInvalidStatus))
}

func TestValidateMoisture(t *testing.T) {
	gt.NoError(t, model.ValidateMoisture(0))
	gt.NoError(t, model.ValidateMoisture(30))
	gt.NoError(t, model.ValidateMoisture(100))
	gt.True(t, errors.Is(model.ValidateMoisture(-1), model.ErrInvalidMoisture))
	gt.True(t, errors.Is(model.ValidateMoisture(101), model.ErrInvalidMoisture))
}

func TestKind(t *testing.T) {
	gt.NoError(t, model.KindCrop.Validate())
	gt.NoError(t, model.KindSoil.Validate())
	gt.Error(t, model.Kind("weather").Validate())
	gt.False(t, model.KindCrop.HasMoisture())
	gt.True(t, model.KindSoil.HasMoisture())
}

func TestImageDataURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	img := model.NewImage(png)
	gt.Equal(t, img.MIMEType, "image/png")

	url := img.DataURL()
	gt.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	parsed, err := model.ParseDataURL(url)
	gt.NoError(t, err)
	gt.Equal(t, parsed.MIMEType, "image/png")
	gt.Equal(t, parsed.Data, png)

	t.Run("unknown content falls back to jpeg", func(t *testing.T) {
		gt.Equal(t, model.NewImage([]byte("plain text")).MIMEType, model.DefaultImageMIMEType)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, s := range []string{"", "image/png;base64,AAAA", "data:image/png;base64", "data:image/png,AAAA", "data:image/png;base64,@@@"} {
			_, err := model.ParseDataURL(s)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrInvalidImage))
		}
	})
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "leaf.jpg")
	gt.NoError(t, os.WriteFile(path, []byte("\xff\xd8\xff\xe0 jpeg body"), 0o600))
	img, err := model.LoadImage(path)
	gt.NoError(t, err)
	gt.Equal(t, img.MIMEType, "image/jpeg")
	gt.False(t, img.IsZero())

	empty := filepath.Join(dir, "empty.jpg")
	gt.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = model.LoadImage(empty)
	gt.True(t, errors.Is(err, model.ErrInvalidImage))

	_, err = model.LoadImage(filepath.Join(dir, "missing.jpg"))
	gt.Error(t, err)
}
