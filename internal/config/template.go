package config

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/scalesync/internal/filex"
	"github.com/dmitrijs2005/scalesync/internal/models"
)

// WriteTemplate writes a starter users.json at path so a new operator has the
// full field layout to fill in. The token fields stay empty until the
// interactive `login` command populates them.
func WriteTemplate(path string) error {
	doc := document{
		Users: []*models.User{
			{
				Username: "your_xiaomi_username",
				Password: "your_xiaomi_password",
				Model:    models.DefaultScaleModel,
				Token:    models.SourceToken{},
				Garmin: models.GarminCredentials{
					Email:    "your_garmin_email",
					Password: "your_garmin_password",
					Domain:   "CN",
				},
			},
		},
	}

	data, err := json.MarshalIndent(&doc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}
