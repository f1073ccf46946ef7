package tonapi

// Типы ответов индексатора (tonapi.io v2). Поля, которые сервис не
// использует, опущены.

type AccountEventsResponse struct {
	Events   []Event `json:"events"`
	NextFrom int64   `json:"next_from"`
}

type Event struct {
	EventID          string   `json:"event_id"`
	Timestamp        int64    `json:"timestamp"`
	InProgress       bool     `json:"in_progress"`
	Actions          []Action `json:"actions"`
	BaseTransactions []string `json:"base_transactions"`
}

type Action struct {
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	JettonTransfer *JettonTransfer `json:"JettonTransfer,omitempty"`
}

type JettonTransfer struct {
	Sender           *AccountAddress `json:"sender,omitempty"`
	Recipient        *AccountAddress `json:"recipient,omitempty"`
	SendersWallet    string          `json:"senders_wallet"`
	RecipientsWallet string          `json:"recipients_wallet"`
	Amount           string          `json:"amount"`
	Comment          string          `json:"comment"`
	Jetton           *JettonPreview  `json:"jetton,omitempty"`
	Transaction      *TransactionRef `json:"transaction,omitempty"`
	TxHash           string          `json:"tx_hash"`
}

type AccountAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type JettonPreview struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type TransactionRef struct {
	Hash string `json:"hash"`
}

type MasterchainHead struct {
	Seqno int64 `json:"seqno"`
}

type BlockchainTransaction struct {
	Hash         string `json:"hash"`
	MCBlockSeqno *int64 `json:"mc_block_seqno,omitempty"`
	Block        *struct {
		Seqno *int64 `json:"seqno,omitempty"`
	} `json:"block,omitempty"`
}

type Account struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Status  string `json:"status"`
}

type JettonInfo struct {
	Decimals *int `json:"decimals,omitempty"`
	Metadata struct {
		Decimals string `json:"decimals"`
		Symbol   string `json:"symbol"`
	} `json:"metadata"`
}

type jettonWalletsResponse struct {
	JettonWallets []struct {
		Address string `json:"address"`
		Jetton  string `json:"jetton"`
	} `json:"jetton_wallets"`
}

type jettonBalancesResponse struct {
	Balances []struct {
		WalletAddress AccountAddress `json:"wallet_address"`
		Jetton        JettonPreview  `json:"jetton"`
	} `json:"balances"`
}
