package pipeline

import (
	"fmt"
	"strings"

	"assemblydigest/internal/domain"
)

const summarySystemPrompt = `당신은 국회 본회의 회의록을 법에 익숙하지 않은 사람에게 쉽게 설명하는 요약가입니다.

요약 지침:
1. 3~4문장 이내로 간결하게 작성합니다.
2. 반드시 줄글로만 작성하고 다른 내용은 덧붙이지 않습니다.
3. 마크다운 문법을 사용하지 않습니다.
4. "습니다" 체의 존댓말을 사용합니다.`

const integrationSystemPrompt = `당신은 여러 부분으로 나뉜 국회 본회의 회의록 요약을 하나로 통합해 법에 익숙하지 않은 사람에게 쉽게 설명하는 요약가입니다.

통합 지침:
1. 3~4문장 이내로 간결하게 작성합니다.
2. 반드시 줄글로만 작성하고 다른 내용은 덧붙이지 않습니다.
3. 중복된 내용은 제거하고 핵심만 남깁니다.
4. 마크다운 문법을 사용하지 않습니다.
5. "습니다" 체의 존댓말을 사용합니다.`

const topicsSystemPrompt = `당신은 대한민국 국회 본회의 회의록을 분석하는 전문가입니다.

분석 지침:
1. 회의에서 논의된 핵심 안건, 이슈, 쟁점사항을 추출합니다.
2. 최소 1개, 최대 5개로 제한합니다.
3. 각 항목은 10글자 내외로 작성합니다.
4. 서로 중복되지 않는 항목으로 구성합니다.
5. 중요도 순으로 정렬합니다.

주의사항:
- 추상적이거나 일반적인 내용보다 구체적인 내용을 우선합니다.
- 실제 논의된 안건과 쟁점사항 위주로 추출합니다.`

const billSystemPrompt = `당신은 법안을 일반인이 이해하기 쉽게 설명하는 전문가입니다.

규칙:
- 배열 항목은 간결한 한 문장으로 작성합니다 (예: "법을 어기면 해임 가능", "겸직 금지").
- highlight는 대괄호를 포함한 문자열입니다 (예: "[겸직 금지, 해임 규정 강화]").
- 모든 내용은 한국어로 작성합니다.
- tag는 법안의 주된 주제를 기준으로 단 하나만 선택합니다.
- 목록에 맞는 값이 없으면 반드시 "기타"를 사용합니다.`

func partLabel(chunk domain.Chunk) string {
	if chunk.Total <= 1 {
		return ""
	}

	return fmt.Sprintf(" (부분 %d/%d)", chunk.Index, chunk.Total)
}

func summaryUserPrompt(title string, chunk domain.Chunk) string {
	return fmt.Sprintf(
		"다음은 %q%s 회의록 내용입니다. 이를 하나의 완성된 요약(반드시 줄글, 3~4문장)으로 작성해주세요:\n\n%s",
		title,
		partLabel(chunk),
		chunk.Text,
	)
}

func integrationUserPrompt(title string, partials []string) string {
	return fmt.Sprintf(
		"다음은 %q 회의록의 부분별 요약들입니다. 이를 하나의 완성된 요약(반드시 줄글, 3~4문장)으로 통합해주세요:\n\n%s",
		title,
		strings.Join(partials, partialSeparator),
	)
}

func topicsUserPrompt(title string, chunk domain.Chunk) string {
	return fmt.Sprintf(
		"다음은 %q%s 회의록 내용입니다.\n이 회의에서 논의된 주요 사항들을 구조화된 형태로 추출해주세요:\n\n%s",
		title,
		partLabel(chunk),
		chunk.Text,
	)
}

func billUserPrompt(name, content string) string {
	return fmt.Sprintf("법안명: %s\n법안 내용: %s", name, content)
}
