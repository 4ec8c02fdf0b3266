package mp4atom

// Object content information descriptor tags.
const (
	ContentClassDescrTag    uint8 = 0x40
	KeywordDescrTag         uint8 = 0x41
	RatingDescrTag          uint8 = 0x42
	LanguageDescrTag        uint8 = 0x43
	ShortTextDescrTag       uint8 = 0x44
	ExpandedTextDescrTag    uint8 = 0x45
	ContentCreatorDescrTag  uint8 = 0x46
	ContentCreationDescrTag uint8 = 0x47
	OCICreatorDescrTag      uint8 = 0x48
	OCICreationDescrTag     uint8 = 0x49
	SmpteCameraDescrTag     uint8 = 0x4A
)

func init() {
	registerDescriptor(ObjectDescriptors, ContentClassDescrTag, ContentClassDescrTag, "ContentClassificationDescriptor", func(d *Descriptor) {
		d.add(NewInt32Property("classificationEntity"))
		d.add(NewInt16Property("classificationTable"))
		rawBody(d, "contentClassificationData", 6)
	})
	registerDescriptor(ObjectDescriptors, KeywordDescrTag, KeywordDescrTag, "KeywordDescriptor", buildKeyword)
	registerDescriptor(ObjectDescriptors, RatingDescrTag, RatingDescrTag, "RatingDescriptor", func(d *Descriptor) {
		d.add(NewInt32Property("ratingEntity"))
		d.add(NewInt16Property("ratingCriteria"))
		rawBody(d, "ratingInfo", 6)
	})
	registerDescriptor(ObjectDescriptors, LanguageDescrTag, LanguageDescrTag, "LanguageDescriptor", func(d *Descriptor) {
		d.add(NewFixedBytesProperty("languageCode", 3))
	})
	registerDescriptor(ObjectDescriptors, ShortTextDescrTag, ShortTextDescrTag, "ShortTextualDescriptor", buildShortText)
	registerDescriptor(ObjectDescriptors, ExpandedTextDescrTag, ExpandedTextDescrTag, "ExpandedTextualDescriptor", buildExpandedText)
	registerDescriptor(ObjectDescriptors, ContentCreatorDescrTag, ContentCreatorDescrTag, "ContentCreatorNameDescriptor", buildCreator)
	registerDescriptor(ObjectDescriptors, OCICreatorDescrTag, OCICreatorDescrTag, "OCICreatorNameDescriptor", buildCreator)
	registerDescriptor(ObjectDescriptors, ContentCreationDescrTag, ContentCreationDescrTag, "ContentCreationDateDescriptor", buildCreation)
	registerDescriptor(ObjectDescriptors, OCICreationDescrTag, OCICreationDescrTag, "OCICreationDateDescriptor", buildCreation)
	registerDescriptor(ObjectDescriptors, SmpteCameraDescrTag, SmpteCameraDescrTag, "SmpteCameraPositionDescriptor", func(d *Descriptor) {
		count := NewInt8Property("parameterCount")
		table := NewTableProperty("parameters", count)
		table.AddColumn(NewInt8Property("id"))
		table.AddColumn(NewInt32Property("value"))
		d.add(count)
		d.add(table)
	})
	registerDescriptor(ObjectDescriptors, OCIDescrTagsStart, OCIDescrTagsEnd, "UnknownOCIDescriptor", func(d *Descriptor) {
		rawBody(d, "data", 0)
	})
}

// addTextHeader appends the language and encoding fields that open every
// textual OCI descriptor.
func addTextHeader(d *Descriptor) {
	d.add(NewFixedBytesProperty("languageCode", 3))
	d.add(NewBitfieldProperty("isUTF8String", 1))
	d.add(NewBitfieldProperty("reserved", 7))
	d.mutatePoint = 2
}

// setUnicode switches strings to UTF-16 when the descriptor's
// isUTF8String flag is clear.
func setUnicode(d *Descriptor, props ...Property) {
	utf16 := d.intProp("isUTF8String").Value(0) == 0
	for _, p := range props {
		p.(*StringProperty).SetUnicode(utf16)
	}
}

func buildKeyword(d *Descriptor) {
	addTextHeader(d)
	count := NewInt8Property("keywordCount")
	table := NewTableProperty("keywords", count)
	keyword := NewCountedStringProperty("string")
	table.AddColumn(keyword)
	d.add(count)
	d.add(table)
	d.mutate = func(d *Descriptor) { setUnicode(d, keyword) }
	d.generate = func(d *Descriptor) { d.intProp("isUTF8String").set(1, 0) }
}

func buildShortText(d *Descriptor) {
	addTextHeader(d)
	name := NewCountedStringProperty("eventName")
	text := NewCountedStringProperty("eventText")
	d.add(name)
	d.add(text)
	d.mutate = func(d *Descriptor) { setUnicode(d, name, text) }
	d.generate = func(d *Descriptor) { d.intProp("isUTF8String").set(1, 0) }
}

func buildExpandedText(d *Descriptor) {
	addTextHeader(d)
	count := NewInt8Property("itemCount")
	table := NewTableProperty("items", count)
	desc := NewCountedStringProperty("itemDescription")
	text := NewCountedStringProperty("itemText")
	table.AddColumn(desc)
	table.AddColumn(text)
	nonItem := NewCountedStringProperty("nonItemText")
	nonItem.SetExpandedCount(true)
	d.add(count)
	d.add(table)
	d.add(nonItem)
	d.mutate = func(d *Descriptor) { setUnicode(d, desc, text, nonItem) }
	d.generate = func(d *Descriptor) { d.intProp("isUTF8String").set(1, 0) }
}

// buildCreator declares a table of creator names whose encoding is chosen
// per row.
func buildCreator(d *Descriptor) {
	count := NewInt8Property("creatorCount")
	table := NewTableProperty("creators", count)
	utf8 := NewBitfieldProperty("isUTF8String", 1)
	name := NewCountedStringProperty("name")
	table.AddColumn(NewFixedBytesProperty("languageCode", 3))
	table.AddColumn(utf8)
	table.AddColumn(NewBitfieldProperty("reserved", 7))
	table.AddColumn(name)
	table.beforeColumn = func(t *TableProperty, row int, col Property) {
		if col == Property(name) {
			name.SetUnicode(utf8.Value(row) == 0)
		}
	}
	d.add(count)
	d.add(table)
}

func buildCreation(d *Descriptor) {
	d.add(NewBitfieldProperty("contentCreationDate", 40))
}
