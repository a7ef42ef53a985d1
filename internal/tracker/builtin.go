package tracker

// Built-in adapter registrations. The UNIT3D sites share one
// implementation and differ only in their id tables; the tables below
// mirror each site's upload form.

func init() {
	Register("ATH", func(id string, env Env) (Adapter, error) {
		return NewUNIT3D(id, env, Table{
			Categories: map[string]string{"movie": "1", "tv": "2"},
			Types: map[string]string{
				"disc":   "1",
				"remux":  "2",
				"encode": "3",
				"web":    "4",
			},
			Resolutions: map[string]string{
				"2160p": "1",
				"1080p": "2",
				"1080i": "3",
				"720p":  "5",
				"576p":  "6",
				"480p":  "8",
			},
			Regions:      map[string]string{"USA": "240", "EUR": "70", "GER": "79", "FRA": "73", "JPN": "116", "GBR": "221"},
			Distributors: map[string]string{"CRITERION": "44", "ARROW": "8", "KINO LORBER": "55"},
			BannedGroups: []string{"YIFY", "RARBG", "MeGusta", "STUTTERSHIT"},
		}), nil
	})

	Register("BLU", func(id string, env Env) (Adapter, error) {
		return NewUNIT3D(id, env, Table{
			Categories: map[string]string{"movie": "1", "tv": "2"},
			Types: map[string]string{
				"disc":   "1",
				"remux":  "3",
				"encode": "12",
				"web":    "4",
			},
			Resolutions: map[string]string{
				"2160p": "1",
				"1080p": "2",
				"1080i": "3",
				"720p":  "5",
				"576p":  "6",
				"480p":  "8",
			},
			Regions:      map[string]string{"USA": "240", "EUR": "70", "GER": "79", "FRA": "73", "JPN": "116", "GBR": "221"},
			Distributors: map[string]string{"CRITERION": "44", "ARROW": "8", "SHOUT FACTORY": "91"},
			BannedGroups: []string{"YIFY", "RARBG", "MeGusta", "TGx", "STUTTERSHIT"},
		}), nil
	})

	Register("LST", func(id string, env Env) (Adapter, error) {
		return NewUNIT3D(id, env, Table{
			Categories: map[string]string{"movie": "1", "tv": "2"},
			Types: map[string]string{
				"disc":   "1",
				"remux":  "2",
				"encode": "3",
				"web":    "4",
			},
			Resolutions: map[string]string{
				"2160p": "1",
				"1080p": "2",
				"1080i": "3",
				"720p":  "5",
				"480p":  "8",
			},
			BannedGroups: []string{"YIFY", "RARBG", "MeGusta"},
		}), nil
	})

	Register("HDT", func(id string, env Env) (Adapter, error) {
		return NewHDT(id, env), nil
	})
}
