package filemgr

import "errors"

// Folder is an upload destination relative to the store root.
type Folder string

type Kind string

const (
	FolderPackageHeader   Folder = "packages/headers"
	FolderPackageCard     Folder = "packages/cards"
	FolderItinerary       Folder = "packages/itinerary"
	FolderItineraryMaster Folder = "itinerary_master"
	FolderVisaCard        Folder = "visas/cards"
	FolderPassport        Folder = "visa_apps/passports"
	FolderPhoto           Folder = "visa_apps/photos"
	FolderAdditionalDoc   Folder = "visa_apps/additional_docs"

	KindImage    Kind = "image"
	KindDocument Kind = "document"

	thumbDir   = "thumbs"
	thumbWidth = 200
)

var (
	folderKinds = map[Folder]Kind{
		FolderPackageHeader:   KindImage,
		FolderPackageCard:     KindImage,
		FolderItinerary:       KindImage,
		FolderItineraryMaster: KindImage,
		FolderVisaCard:        KindImage,
		FolderPassport:        KindImage,
		FolderPhoto:           KindImage,
		FolderAdditionalDoc:   KindDocument,
	}

	AllowedExtensions = map[Kind][]string{
		KindImage:    {".jpg", ".jpeg", ".png", ".gif", ".webp"},
		KindDocument: {".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png", ".webp"},
	}

	AllowedMIMEs = map[Kind][]string{
		KindImage: {"image/jpeg", "image/png", "image/gif", "image/webp"},
		KindDocument: {
			"application/pdf", "application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip", // docx sniffs as zip
			"image/jpeg", "image/png", "image/webp",
		},
	}

	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidMIME      = errors.New("invalid MIME type")
	ErrFileTooLarge     = errors.New("file size exceeds limit")
	ErrUnknownFolder    = errors.New("unknown upload folder")
	ErrOutsideRoot      = errors.New("path escapes upload root")
)
