package form

// Question type names match what the mobile client declares in form
// definitions. Groups have no qtype.
const (
	QTypeText           = "text"
	QTypeLongText       = "long_text"
	QTypeInteger        = "integer"
	QTypeCounter        = "counter"
	QTypeDecimal        = "decimal"
	QTypeBarcode        = "barcode"
	QTypeSelectOne      = "select_one"
	QTypeSelectMultiple = "select_multiple"
	QTypeDate           = "date"
	QTypeTime           = "time"
	QTypeDatetime       = "datetime"
	QTypeFormstart      = "formstart"
	QTypeFormend        = "formend"
	QTypeLocation       = "location"
	QTypeImage          = "image"
	QTypeAnnotatedImage = "annotated_image"
	QTypeSketch         = "sketch"
	QTypeSignature      = "signature"
	QTypeAudio          = "audio"
	QTypeVideo          = "video"
)

var knownQTypes = map[string]bool{
	QTypeText: true, QTypeLongText: true, QTypeInteger: true, QTypeCounter: true,
	QTypeDecimal: true, QTypeBarcode: true, QTypeSelectOne: true, QTypeSelectMultiple: true,
	QTypeDate: true, QTypeTime: true, QTypeDatetime: true, QTypeFormstart: true,
	QTypeFormend: true, QTypeLocation: true, QTypeImage: true, QTypeAnnotatedImage: true,
	QTypeSketch: true, QTypeSignature: true, QTypeAudio: true, QTypeVideo: true,
}

func KnownQType(name string) bool { return knownQTypes[name] }

// MediaKind maps a multimedia qtype to its stored media kind. Empty for
// non-multimedia types.
func MediaKind(qtype string) string {
	switch qtype {
	case QTypeImage, QTypeAnnotatedImage, QTypeSketch, QTypeSignature:
		return "image"
	case QTypeAudio:
		return "audio"
	case QTypeVideo:
		return "video"
	default:
		return ""
	}
}

func IsMultimedia(qtype string) bool { return MediaKind(qtype) != "" }
