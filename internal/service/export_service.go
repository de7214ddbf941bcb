package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response。
// 推荐记录为空时仍生成仅含表头与合计行的文件。
type ExportService interface {
	// ExportReferralHistory 导出推荐记录为 Excel
	ExportReferralHistory(ctx context.Context, referrerID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	referral ReferralService
	logger   *zap.Logger
	nowFn    func() time.Time
}

// NewExportService 创建 ExportService 实例
func NewExportService(referral ReferralService, logger *zap.Logger) ExportService {
	return &exportService{referral: referral, logger: logger, nowFn: time.Now}
}

// ═══════════════════════════════════════════════════════════
// ExportReferralHistory 导出推荐记录
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "Referrals"
//   - 表头：Username | Email | Status | Commission | Joined At
//   - 末行：佣金合计
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportReferralHistory(ctx context.Context, referrerID string) (*bytes.Buffer, string, error) {
	// 1. 查询推荐记录（含审核门槛校验）
	history, err := s.referral.GetHistory(ctx, referrerID)
	if err != nil {
		return nil, "", err
	}

	// 2. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Referrals"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "B", 32)
	f.SetColWidth(sheetName, "C", "C", 10)
	f.SetColWidth(sheetName, "D", "D", 14)
	f.SetColWidth(sheetName, "E", "E", 24)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"Username", "Email", "Status", "Commission", "Joined At"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	// 数据行
	total := decimal.Zero
	row := 2
	for _, e := range history {
		f.SetCellValue(sheetName, cell("A", row), e.Username)
		f.SetCellValue(sheetName, cell("B", row), e.Email)
		f.SetCellValue(sheetName, cell("C", row), e.Status)
		f.SetCellValue(sheetName, cell("D", row), e.CommissionAmount.StringFixed(2))
		f.SetCellValue(sheetName, cell("E", row), e.JoinedAt)
		total = total.Add(e.CommissionAmount)
		row++
	}

	// 合计行
	f.SetCellValue(sheetName, cell("C", row), "Total")
	f.SetCellValue(sheetName, cell("D", row), total.StringFixed(2))

	// 3. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("referrals_%s.xlsx", s.nowFn().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
