package view

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"library_desk/internal/workflow"
)

// Placeholder and label texts shown to librarians.
const (
	MsgReadersNotFound = "Không tìm thấy độc giả"
	MsgBooksNotFound   = "Không tìm thấy sách"
	MsgListFailed      = "Lỗi tải danh sách"
	MsgReaderChosen    = "Đã chọn độc giả"
	MsgNotChosen       = "Chưa chọn"
	MsgNoBorrowing     = "Không có độc giả đang mượn sách"
	MsgNoReaders       = "Không có độc giả"
	MsgNoUnreturned    = "Độc giả này không có sách mượn chưa trả"
	MsgNoData          = "Không có dữ liệu"
	MsgDataFailed      = "Lỗi tải dữ liệu"
	MsgOverdue         = "Quá hạn"
	MsgOnTime          = "Còn hạn"
	MsgDueBy           = "Phải trả:"
	MsgPickReader      = "Chọn độc giả để xem tóm tắt"
	MsgSelectedReader  = "Độc giả đã chọn"
)

var (
	borrowHistoryHeaders = []string{"Phiếu #", "Độc giả", "Ngày mượn", "Phải trả", "Ngày trả", "Trạng thái", "Hành động"}
	returnHistoryHeaders = []string{"Phiếu #", "Độc giả", "Sách", "Ngày trả", "Tiền phạt", "Trạng thái"}
)

// amounts groups digits by thousands with commas, like the backend's "{:,}".
var amounts = message.NewPrinter(language.English)

var filterLabels = map[string]string{
	workflow.FilterAll: "Tất cả",
	"unreturned":       "Chưa trả",
	"overdue":          "Quá hạn",
	"returned":         "Đã trả",
	"ontime":           "Đúng hạn",
}

var tabLabels = map[string]string{
	workflow.TabCheckout:  "Cho mượn",
	workflow.TabBorrowing: "Độc giả đang mượn",
	workflow.TabHistory:   "Lịch sử",
	workflow.TabReturn:    "Trả sách",
}

// Copies renders a book count, e.g. "3 quyển".
func Copies(n int) string {
	return strconv.Itoa(n) + " quyển"
}

// OverdueDays renders e.g. "Quá hạn 4 ngày".
func OverdueDays(n int) string {
	return MsgOverdue + " " + strconv.Itoa(n) + " ngày"
}

// FormatCurrency renders an amount in dong with thousands separators: 46000 -> "46,000đ".
func FormatCurrency(amount int) string {
	return amounts.Sprintf("%d", amount) + "đ"
}

func filterLabel(v string) string {
	if l, ok := filterLabels[v]; ok {
		return l
	}
	return v
}

func tabLabel(v string) string {
	if l, ok := tabLabels[v]; ok {
		return l
	}
	return v
}

func historyHeaders(kind workflow.HistoryKind) []string {
	if kind == workflow.ReturnHistory {
		return returnHistoryHeaders
	}
	return borrowHistoryHeaders
}
