package services

import (
	"strings"
	"time"

	"github.com/zyra-market/backend/internal/tonapi"
)

// MatchExpectation описывает, какой входящий перевод считается оплатой:
// точная сумма в базовых единицах, подстрока-референс в комментарии,
// допустимые адреса получателя и мастера жетона.
type MatchExpectation struct {
	AmountBaseUnits string
	Reference       string
	RecipientAddrs  []string // эскроу-адрес в любых формах
	JettonMasters   []string // пустой список отключает проверку жетона
}

// MatchedTransfer — найденный перевод и кандидаты на хеш его транзакции
// в порядке убывания пригодности.
type MatchedTransfer struct {
	PayerAddress string
	Comment      string
	EventID      string
	Timestamp    int64
	TxHashes     []string
}

// MatchIncomingTransfer ищет в событиях аккаунта первый JettonTransfer,
// удовлетворяющий ожиданию. События сканируются в порядке, который вернул
// индексатор (новые первыми); выигрывает первое совпадение.
func MatchIncomingTransfer(events []tonapi.Event, exp MatchExpectation) (*MatchedTransfer, bool) {
	if exp.Reference == "" || exp.AmountBaseUnits == "" {
		return nil, false
	}

	recipients := normalizeSet(exp.RecipientAddrs)
	if len(recipients) == 0 {
		return nil, false
	}
	masters := normalizeSet(exp.JettonMasters)

	for _, ev := range events {
		for _, action := range ev.Actions {
			tr := action.JettonTransfer
			if tr == nil {
				continue
			}

			if !recipientMatches(tr, recipients) {
				continue
			}
			if len(masters) > 0 && !jettonMatches(tr, masters) {
				continue
			}
			if tr.Amount != exp.AmountBaseUnits {
				continue
			}
			if !strings.Contains(tr.Comment, exp.Reference) {
				continue
			}

			m := &MatchedTransfer{
				Comment:   tr.Comment,
				EventID:   ev.EventID,
				Timestamp: ev.Timestamp,
			}
			if tr.Sender != nil {
				m.PayerAddress = tr.Sender.Address
			}

			if tr.Transaction != nil {
				m.addHash(tr.Transaction.Hash)
			}
			m.addHash(tr.TxHash)
			m.addHash(ev.EventID)
			for _, h := range ev.BaseTransactions {
				m.addHash(h)
			}
			return m, true
		}
	}
	return nil, false
}

func (m *MatchedTransfer) addHash(h string) {
	if h == "" {
		return
	}
	for _, seen := range m.TxHashes {
		if seen == h {
			return
		}
	}
	m.TxHashes = append(m.TxHashes, h)
}

func recipientMatches(tr *tonapi.JettonTransfer, recipients map[string]struct{}) bool {
	if tr.Recipient != nil {
		if _, ok := recipients[tonapi.NormalizeAddress(tr.Recipient.Address)]; ok {
			return true
		}
	}
	if tr.RecipientsWallet != "" {
		if _, ok := recipients[tonapi.NormalizeAddress(tr.RecipientsWallet)]; ok {
			return true
		}
	}
	return false
}

func jettonMatches(tr *tonapi.JettonTransfer, masters map[string]struct{}) bool {
	if tr.Jetton == nil {
		return false
	}
	_, ok := masters[tonapi.NormalizeAddress(tr.Jetton.Address)]
	return ok
}

func normalizeSet(addrs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		set[tonapi.NormalizeAddress(a)] = struct{}{}
	}
	return set
}

// Confirmations считает число подтверждений по seqno мастерчейна.
func Confirmations(head, txSeqno int64) int {
	n := head - txSeqno + 1
	if n < 0 {
		return 0
	}
	return int(n)
}

// FallbackConfirmations применяется, когда seqno транзакции не удалось
// разрешить ни по одному кандидату: если событие старше, чем
// required*blockSeconds, перевод считается финализированным.
func FallbackConfirmations(eventTime, now time.Time, blockSeconds, required int) int {
	if required <= 0 {
		return 0
	}
	elapsed := now.Sub(eventTime)
	if elapsed >= time.Duration(required*blockSeconds)*time.Second {
		return required
	}
	return 0
}
