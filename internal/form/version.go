package form

import "math/rand"

// VersionCodeLength is the length of generated version codes.
const VersionCodeLength = 6

func newVersionCode() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, VersionCodeLength)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// Publish marks the form published, creating version 1 on first publish or a
// new current version when the form was flagged for upgrade. Re-publishing an
// unchanged form keeps the current code so deployed clients stay valid.
func (f *Form) Publish() {
	cur := f.CurrentVersion()
	switch {
	case cur == nil:
		f.Versions = append(f.Versions, Version{Code: f.uniqueVersionCode(), Sequence: 1, Current: true})
	case f.UpgradeNeeded:
		for i := range f.Versions {
			f.Versions[i].Current = false
		}
		f.Versions = append(f.Versions, Version{
			Code:     f.uniqueVersionCode(),
			Sequence: cur.Sequence + 1,
			Current:  true,
		})
		f.UpgradeNeeded = false
	}
	f.Published = true
}

func (f *Form) Unpublish() { f.Published = false }

// FlagForUpgrade requests a new version code on the next publish, forcing
// clients to re-fetch the form.
func (f *Form) FlagForUpgrade() { f.UpgradeNeeded = true }

func (f *Form) uniqueVersionCode() string {
	for {
		code := newVersionCode()
		dup := false
		for _, v := range f.Versions {
			if v.Code == code {
				dup = true
				break
			}
		}
		if !dup {
			return code
		}
	}
}
