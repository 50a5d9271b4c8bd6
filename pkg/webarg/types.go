// Package webarg implements the binary argument format exchanged with the
// web applet: the fixed argument header, the TLV entry table that follows
// it, the common-arguments storage and the fixed-layout return value.
//
// All multi-byte integers are little-endian and structures are packed the
// way the guest library lays them out. Decoding never reads past the end
// of the supplied buffer; a truncated entry table degrades to a partial
// result instead of failing (see Decode).
package webarg

import "fmt"

// ShimKind selects the behavior variant of a web applet invocation.
// The set is closed: values outside it are rejected at decode time, so
// dispatch code never observes an unknown kind.
type ShimKind uint32

const (
	ShimShop    ShimKind = 1
	ShimLogin   ShimKind = 2
	ShimOffline ShimKind = 3
	ShimShare   ShimKind = 4
	ShimWeb     ShimKind = 5
	ShimWifi    ShimKind = 6
	ShimLobby   ShimKind = 7
)

// Valid reports whether k is a member of the closed shim kind set.
func (k ShimKind) Valid() bool {
	return k >= ShimShop && k <= ShimLobby
}

func (k ShimKind) String() string {
	switch k {
	case ShimShop:
		return "shop"
	case ShimLogin:
		return "login"
	case ShimOffline:
		return "offline"
	case ShimShare:
		return "share"
	case ShimWeb:
		return "web"
	case ShimWifi:
		return "wifi"
	case ShimLobby:
		return "lobby"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(k))
	}
}

// InputTLVType identifies an entry in the argument TLV table.
type InputTLVType uint16

const (
	TLVInitialURL      InputTLVType = 0x1
	TLVCallbackURL     InputTLVType = 0x3
	TLVCallbackableURL InputTLVType = 0x4
	TLVApplicationID   InputTLVType = 0x5
	TLVDocumentPath    InputTLVType = 0x6
	TLVDocumentKind    InputTLVType = 0x7
	TLVSystemDataID    InputTLVType = 0x8
	TLVShareStartPage  InputTLVType = 0x9
	TLVWhitelist       InputTLVType = 0xA
	TLVNewsFlag        InputTLVType = 0xB
)

func (t InputTLVType) String() string {
	switch t {
	case TLVInitialURL:
		return "initial_url"
	case TLVCallbackURL:
		return "callback_url"
	case TLVCallbackableURL:
		return "callbackable_url"
	case TLVApplicationID:
		return "application_id"
	case TLVDocumentPath:
		return "document_path"
	case TLVDocumentKind:
		return "document_kind"
	case TLVSystemDataID:
		return "system_data_id"
	case TLVShareStartPage:
		return "share_start_page"
	case TLVWhitelist:
		return "whitelist"
	case TLVNewsFlag:
		return "news_flag"
	default:
		return fmt.Sprintf("type_0x%x", uint16(t))
	}
}

// DocumentKind selects the title-id source and archive category for the
// offline variant.
type DocumentKind uint32

const (
	DocumentOfflineHtmlPage             DocumentKind = 1
	DocumentApplicationLegalInformation DocumentKind = 2
	DocumentSystemDataPage              DocumentKind = 3
)

// Valid reports whether k is a member of the closed document kind set.
func (k DocumentKind) Valid() bool {
	return k >= DocumentOfflineHtmlPage && k <= DocumentSystemDataPage
}

// ResourceLabel returns the path-segment label used to build the offline
// cache root for this kind.
func (k DocumentKind) ResourceLabel() string {
	switch k {
	case DocumentOfflineHtmlPage:
		return "manual"
	case DocumentApplicationLegalInformation:
		return "legal_information"
	case DocumentSystemDataPage:
		return "system_data"
	default:
		return "unknown"
	}
}

func (k DocumentKind) String() string {
	switch k {
	case DocumentOfflineHtmlPage:
		return "offline_html_page"
	case DocumentApplicationLegalInformation:
		return "application_legal_information"
	case DocumentSystemDataPage:
		return "system_data_page"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(k))
	}
}

// ExitReason reports why the browser surface was dismissed.
type ExitReason uint32

const (
	ExitEndButtonPressed  ExitReason = 0
	ExitBackButtonPressed ExitReason = 1
	ExitRequested         ExitReason = 2
	ExitCallbackURL       ExitReason = 3
	ExitWindowClosed      ExitReason = 4
	ExitErrorDialog       ExitReason = 7
)

func (r ExitReason) String() string {
	switch r {
	case ExitEndButtonPressed:
		return "end_button_pressed"
	case ExitBackButtonPressed:
		return "back_button_pressed"
	case ExitRequested:
		return "exit_requested"
	case ExitCallbackURL:
		return "callback_url"
	case ExitWindowClosed:
		return "window_closed"
	case ExitErrorDialog:
		return "error_dialog"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(r))
	}
}

// AppletVersion is the web applet library version declared by the caller
// in the common arguments. Two thresholds matter for the completion path:
// Share invocations at or above VersionShareOutputTLV and Web invocations
// at or above VersionWebOutputTLV expect structured output TLVs instead of
// the legacy return value. That path is not implemented; the completion
// code logs when it is hit and falls back to the legacy record.
type AppletVersion uint32

const (
	VersionShareOutputTLV AppletVersion = 0x30000
	VersionWebOutputTLV   AppletVersion = 0x80000
)

// Wire sizes of the packed structures.
const (
	// HeaderSize is the size of the argument header:
	// total_tlv_entries u16, 2 pad bytes, shim_kind u32.
	HeaderSize = 8

	// tlvHeaderSize is the size of a TLV entry's fixed fields:
	// type u16, data_size u16, 4 pad bytes.
	tlvHeaderSize = 8

	// CommonArgumentsSize is the size of the common-arguments storage.
	CommonArgumentsSize = 0x20

	// LastURLCapacity is the capacity of the return value's URL buffer.
	LastURLCapacity = 0x1000

	// ReturnValueSize is the size of the serialized return value:
	// exit_reason u32, 4 pad bytes, last_url [0x1000]u8, last_url_size u64.
	ReturnValueSize = 8 + LastURLCapacity + 8
)
