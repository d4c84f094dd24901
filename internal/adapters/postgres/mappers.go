package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/mobilauth/activation-service/internal/domain"
	"github.com/mobilauth/activation-service/internal/ports"
)

func toActivationModel(act domain.Activation) (activationModel, error) {
	flags := "[]"
	if len(act.Flags) > 0 {
		raw, err := json.Marshal(act.Flags)
		if err != nil {
			return activationModel{}, fmt.Errorf("encode flags: %w", err)
		}
		flags = string(raw)
	}
	return activationModel{
		ActivationID:        act.ActivationID,
		UserID:              act.UserID,
		ApplicationID:       act.ApplicationID,
		Status:              string(act.Status),
		BlockedReason:       act.BlockedReason,
		ActivationCode:      act.ActivationCode,
		Counter:             int64(act.Counter),
		CtrData:             act.CtrData,
		OTPUsed:             act.OTPUsed,
		FailedAttempts:      act.FailedAttempts,
		MaxFailedAttempts:   act.MaxFailedAttempts,
		DevicePublicKey:     act.DevicePublicKey,
		ServerPublicKey:     act.ServerPublicKey,
		ServerPrivateKey:    act.ServerPrivateKey,
		ServerKeyEncryption: string(act.ServerKeyEncryption),
		Version:             int(act.Version),
		OTPMode:             string(act.OTPMode),
		OTPHash:             act.OTPHash,
		Platform:            act.Platform,
		DeviceInfo:          act.DeviceInfo,
		Flags:               flags,
		ExternalID:          act.ExternalID,
		CreatedAt:           act.CreatedAt,
		ExpiresAt:           act.ExpiresAt,
		LastUsedAt:          act.LastUsedAt,
	}, nil
}

func toDomainActivation(row activationModel) (domain.Activation, error) {
	status, err := domain.ParseActivationStatus(row.Status)
	if err != nil {
		return domain.Activation{}, err
	}
	var flags []string
	if row.Flags != "" && row.Flags != "[]" {
		if err := json.Unmarshal([]byte(row.Flags), &flags); err != nil {
			return domain.Activation{}, fmt.Errorf("decode flags: %w", err)
		}
	}
	return domain.Activation{
		ActivationID:        row.ActivationID,
		UserID:              row.UserID,
		ApplicationID:       row.ApplicationID,
		Status:              status,
		BlockedReason:       row.BlockedReason,
		ActivationCode:      row.ActivationCode,
		Counter:             uint64(row.Counter),
		CtrData:             row.CtrData,
		OTPUsed:             row.OTPUsed,
		FailedAttempts:      row.FailedAttempts,
		MaxFailedAttempts:   row.MaxFailedAttempts,
		DevicePublicKey:     row.DevicePublicKey,
		ServerPublicKey:     row.ServerPublicKey,
		ServerPrivateKey:    row.ServerPrivateKey,
		ServerKeyEncryption: domain.EncryptionMode(row.ServerKeyEncryption),
		Version:             domain.ProtocolVersion(row.Version),
		OTPMode:             domain.OTPValidationMode(row.OTPMode),
		OTPHash:             row.OTPHash,
		Platform:            row.Platform,
		DeviceInfo:          row.DeviceInfo,
		Flags:               flags,
		ExternalID:          row.ExternalID,
		CreatedAt:           row.CreatedAt,
		ExpiresAt:           row.ExpiresAt,
		LastUsedAt:          row.LastUsedAt,
	}, nil
}

func toDomainApplication(row applicationModel) domain.Application {
	return domain.Application{
		ApplicationID: row.ApplicationID,
		Name:          row.Name,
		CreatedAt:     row.CreatedAt,
	}
}

func toDomainVersion(row applicationVersionModel) domain.ApplicationVersion {
	return domain.ApplicationVersion{
		VersionID:         row.VersionID,
		ApplicationID:     row.ApplicationID,
		Name:              row.Name,
		ApplicationKey:    row.ApplicationKey,
		ApplicationSecret: row.ApplicationSecret,
		Supported:         row.Supported,
		CreatedAt:         row.CreatedAt,
	}
}

func toDomainMasterKeyPair(row masterKeyPairModel) domain.MasterKeyPair {
	return domain.MasterKeyPair{
		KeyPairID:            row.KeyPairID,
		ApplicationID:        row.ApplicationID,
		PublicKey:            row.PublicKey,
		PrivateKey:           row.PrivateKey,
		PrivateKeyEncryption: domain.EncryptionMode(row.PrivateKeyEncryption),
		CreatedAt:            row.CreatedAt,
	}
}

func toRecoveryCodeModel(code domain.RecoveryCode) recoveryCodeModel {
	return recoveryCodeModel{
		RecoveryCodeID:    code.RecoveryCodeID,
		ApplicationID:     code.ApplicationID,
		UserID:            code.UserID,
		ActivationID:      code.ActivationID,
		Code:              code.Code,
		Status:            string(code.Status),
		FailedAttempts:    code.FailedAttempts,
		MaxFailedAttempts: code.MaxFailedAttempts,
		CreatedAt:         code.CreatedAt,
	}
}

func toRecoveryPukModel(puk domain.RecoveryPuk) recoveryPukModel {
	return recoveryPukModel{
		PukID:          puk.PukID,
		RecoveryCodeID: puk.RecoveryCodeID,
		PukIndex:       puk.Index,
		PukHash:        puk.PukHash,
		HashEncryption: string(puk.HashEncryption),
		Status:         string(puk.Status),
		UsedAt:         puk.UsedAt,
	}
}

func toDomainRecoveryCode(row recoveryCodeModel, puks []recoveryPukModel) domain.RecoveryCode {
	code := domain.RecoveryCode{
		RecoveryCodeID:    row.RecoveryCodeID,
		ApplicationID:     row.ApplicationID,
		UserID:            row.UserID,
		ActivationID:      row.ActivationID,
		Code:              row.Code,
		Status:            domain.RecoveryCodeStatus(row.Status),
		FailedAttempts:    row.FailedAttempts,
		MaxFailedAttempts: row.MaxFailedAttempts,
		CreatedAt:         row.CreatedAt,
		Puks:              make([]domain.RecoveryPuk, 0, len(puks)),
	}
	for _, puk := range puks {
		code.Puks = append(code.Puks, domain.RecoveryPuk{
			PukID:          puk.PukID,
			RecoveryCodeID: puk.RecoveryCodeID,
			Index:          puk.PukIndex,
			PukHash:        puk.PukHash,
			HashEncryption: domain.EncryptionMode(puk.HashEncryption),
			Status:         domain.RecoveryPukStatus(puk.Status),
			UsedAt:         puk.UsedAt,
		})
	}
	return code
}

func toDomainToken(row tokenModel) domain.Token {
	return domain.Token{
		TokenID:       row.TokenID,
		ActivationID:  row.ActivationID,
		Secret:        row.Secret,
		SignatureType: domain.SignatureType(row.SignatureType),
		CreatedAt:     row.CreatedAt,
	}
}

func toDomainCallback(row callbackModel) domain.CallbackConfig {
	return domain.CallbackConfig{
		CallbackID:    row.CallbackID,
		ApplicationID: row.ApplicationID,
		Name:          row.Name,
		URL:           row.URL,
		CreatedAt:     row.CreatedAt,
	}
}

func toCallbackRecord(row callbackOutboxModel) ports.CallbackRecord {
	return ports.CallbackRecord{
		OutboxID:       row.OutboxID,
		ApplicationID:  row.ApplicationID,
		ActivationID:   row.ActivationID,
		Status:         row.Status,
		RetryCount:     row.RetryCount,
		LastError:      row.LastError,
		CreatedAt:      row.CreatedAt,
		PublishedAt:    row.PublishedAt,
		ClaimToken:     row.ClaimToken,
		ClaimUntil:     row.ClaimUntil,
		DeadLetteredAt: row.DeadLetteredAt,
	}
}
