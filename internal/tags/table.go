package tags

// friendlyTable maps the field names used by the geotagging form and the
// metadata viewer to every tag that should receive the value. Several
// namespaces are written so that more readers pick the value up.
var friendlyTable = map[string][]string{
	"GPSVersionID": {"GPS:GPSVersionID"},
	"GPSMapDatum":  {"GPS:GPSMapDatum"},

	"Country":        {"IPTC:Country-PrimaryLocationName", "XMP-iptcCore:CountryName"},
	"State":          {"IPTC:Province-State", "XMP-iptcCore:ProvinceState"},
	"State/Province": {"IPTC:Province-State", "XMP-iptcCore:ProvinceState"},
	"City":           {"IPTC:City", "XMP-iptcCore:City"},
	"Sublocation":    {"IPTC:Sub-location", "XMP-iptcCore:Location"},

	"Creator":              {"IFD0:Artist", "XMP-tiff:Artist", "XMP-dc:Creator"},
	"Artist":               {"IFD0:Artist", "XMP-tiff:Artist", "XMP-dc:Creator"},
	"CreatorTitle":         {"IPTC:By-lineTitle", "XMP-photoshop:CaptionWriter"},
	"Caption Writer":       {"IPTC:Writer-Editor", "XMP-photoshop:CaptionWriter"},
	"Credit":               {"IPTC:Credit", "XMP-photoshop:Credit"},
	"Source":               {"IPTC:Source", "XMP-photoshop:Source"},
	"URL":                  {"Photoshop:URL", "XMP-xmp:BaseURL"},
	"ObjectName":           {"IPTC:ObjectName"},
	"Object Name":          {"IPTC:ObjectName"},
	"Headline":             {"XMP-photoshop:Headline"},
	"Caption":              {"IPTC:Caption-Abstract", "XMP-dc:Description"},
	"Copyright":            {"IFD0:Copyright", "IPTC:CopyrightNotice", "XMP-dc:Rights"},
	"Rating":               {"IFD0:Rating", "XMP-xmp:Rating"},
	"RatingPercent":        {"XMP-microsoft:RatingPercent"},
	"Rating Percent":       {"XMP-microsoft:RatingPercent"},
	"SpecialInstructions":  {"XMP-xmp:Instructions"},
	"Special Instructions": {"XMP-xmp:Instructions"},

	"Category":                {"IPTC:Category"},
	"SupplementalCategories":  {"IPTC:SupplementalCategories"},
	"Supplemental Categories": {"IPTC:SupplementalCategories"},
	"Keywords":                {"IPTC:Keywords", "XMP-dc:Subject"},

	"Address":    {"IPTC:ContactInfoAddress", "XMP-iptcCore:CreatorWorkAddress"},
	"PostalCode": {"IPTC:ContactInfoPostalCode", "XMP-iptcCore:CreatorPostalCode"},
	"Phone":      {"IPTC:ContactInfoPhone", "XMP-iptcCore:CreatorWorkTelephone"},
	"Email":      {"IPTC:ContactInfoEmail", "XMP-iptcCore:CreatorWorkEmail"},

	"Contact Byline":         {"IPTC:By-line", "XMP-dc:Creator"},
	"Contact Byline Title":   {"IPTC:By-lineTitle", "XMP-photoshop:CaptionWriter"},
	"Contact Address":        {"IPTC:ContactInfoAddress", "XMP-iptcCore:CreatorWorkAddress"},
	"Contact City":           {"IPTC:ContactInfoCity", "XMP-iptcCore:CreatorCity"},
	"Contact PostalCode":     {"IPTC:ContactInfoPostalCode", "XMP-iptcCore:CreatorPostalCode"},
	"Contact State/Province": {"IPTC:ContactInfoStateProvince", "XMP-iptcCore:CreatorRegion"},
	"Contact Country":        {"IPTC:ContactInfoCountry", "XMP-iptcCore:CreatorCountry"},
	"Contact Phone":          {"IPTC:ContactInfoPhone", "XMP-iptcCore:CreatorWorkTelephone"},
	"Contact E-Mail":         {"IPTC:ContactInfoEmail", "XMP-iptcCore:CreatorWorkEmail"},
	"Contact URL":            {"IPTC:ContactInfoWebURL", "XMP-iptcCore:CreatorWorkURL"},

	"GPSDateStamp":      {"GPS:GPSDateStamp"},
	"GPS Date Stamp":    {"GPS:GPSDateStamp"},
	"GPSTimeStamp":      {"GPS:GPSTimeStamp"},
	"GPS Time Stamp":    {"GPS:GPSTimeStamp"},
	"GPS Date Time":     {"XMP:GPSDateTime"},
	"Creation Date":     {"EXIF:CreateDate", "XMP-xmp:CreateDate"},
	"Modification Date": {"EXIF:ModifyDate", "XMP-xmp:ModifyDate"},
	"Taken Date":        {"EXIF:DateTimeOriginal", "XMP-xmp:CreateDate"},
}

// formFanout lists form fields that always write exactly these tags,
// regardless of friendlyTable.
var formFanout = map[string][]string{
	"Country":        {"IPTC:Country-PrimaryLocationName", "XMP-iptcCore:CountryName"},
	"State":          {"IPTC:Province-State", "XMP-iptcCore:ProvinceState"},
	"City":           {"IPTC:City", "XMP-iptcCore:City"},
	"ContactCountry": {"IPTC:ContactInfoCountry", "XMP-iptcCore:CreatorCountry"},
	"ContactState":   {"IPTC:ContactInfoStateProvince", "XMP-iptcCore:CreatorRegion"},
	"ContactCity":    {"IPTC:ContactInfoCity", "XMP-iptcCore:CreatorCity"},
	"ContactURL":     {"IPTC:ContactInfoWebURL", "XMP-iptcCore:CreatorWorkURL"},
	"Creator":        {"IFD0:Artist", "XMP-tiff:Artist", "XMP-dc:Creator"},
}

// Preset location tags. A region preset overwrites all of them.
var (
	presetCountryTags = []string{
		"IPTC:Country-PrimaryLocationName",
		"XMP-iptcCore:CreatorCountry",
		"XMP-iptcCore:CountryName",
		"XMP-photoshop:Country",
	}
	presetStateTags = []string{
		"IPTC:Province-State",
		"XMP-iptcCore:CreatorRegion",
		"XMP-iptcCore:ProvinceState",
		"XMP-photoshop:State",
	}
	presetCityTags = []string{
		"IPTC:City",
		"XMP-iptcCore:CreatorCity",
		"XMP-iptcCore:City",
		"XMP-photoshop:City",
	}
	presetSublocationTags = []string{
		"IPTC:Sub-location",
		"XMP-iptcCore:Location",
	}
)

// Well-known identifiers written by the special-case handlers.
var (
	GPSLatitude     = MustKey("GPS:GPSLatitude")
	GPSLatitudeRef  = MustKey("GPS:GPSLatitudeRef")
	GPSLongitude    = MustKey("GPS:GPSLongitude")
	GPSLongitudeRef = MustKey("GPS:GPSLongitudeRef")
	GPSMapDatum     = MustKey("GPS:GPSMapDatum")
	GPSDateStamp    = MustKey("GPS:GPSDateStamp")
	GPSTimeStamp    = MustKey("GPS:GPSTimeStamp")
	XMPGPSDateTime  = MustKey("XMP:GPSDateTime")
	DateTimeOrig    = MustKey("EXIF:DateTimeOriginal")
	ExifCreateDate  = MustKey("EXIF:CreateDate")
	ExifModifyDate  = MustKey("EXIF:ModifyDate")
	XMPCreateDate   = MustKey("XMP-xmp:CreateDate")
	XMPModifyDate   = MustKey("XMP-xmp:ModifyDate")
	IPTCKeywords    = MustKey("IPTC:Keywords")
	XMPSubject      = MustKey("XMP-dc:Subject")
	ContactAddress  = MustKey("IPTC:ContactInfoAddress")
)

// DefaultDenylist holds tags that exiftool reports but must not receive:
// file system data, derived composite values and encoding parameters.
// Grouped entries are prefixes; bare entries are tag names denied in any
// group. Tags that move or rename the file are all bare.
var DefaultDenylist = []string{
	"FileName", "Directory", "FilePermissions", "FileModifyDate",
	"FileCreateDate", "FileAccessDate", "FileInodeChangeDate", "FileSize",
	"FileUserID", "FileGroupID", "TestName", "HardLink", "SymLink",
	"SourceFile", "ExifToolVersion",
	"System:", "ExifTool:",
	"File:FileType", "File:FileTypeExtension", "File:MIMEType",
	"File:ExifByteOrder", "File:ImageWidth", "File:ImageHeight",
	"File:EncodingProcess", "File:BitsPerSample", "File:ColorComponents",
	"File:YCbCrSubSampling",
	"Composite:",
}

func keys(ids []string) []Key {
	out := make([]Key, len(ids))
	for i, id := range ids {
		out[i] = MustKey(id)
	}
	return out
}
